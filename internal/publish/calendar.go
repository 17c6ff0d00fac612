package publish

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"nextmeeting/internal/model"
	"nextmeeting/internal/occurrence"
)

const icsLocalTime = "20060102T150405"

// Calendar renders the meetings of a full week as an iCalendar feed with one
// weekly recurring event per meeting, anchored in loc.
func Calendar(site Site, full model.Schedule, loc *time.Location) []byte {
	if loc == nil {
		loc = time.UTC
	}
	tzid := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{loc.String()}}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//nextmeeting//schedule//EN")
	if site.Name != "" {
		cal.SetXWRCalName(site.Name)
	}

	for _, m := range full.Meetings {
		start := m.NextOccurrence.In(loc)
		end := m.End().In(loc)

		ev := cal.AddEvent(eventUID(site.SiteID, m, start))
		ev.SetDtStampTime(full.Metadata.GeneratedAt.Time)
		ev.SetProperty(ics.ComponentPropertyDtStart, start.Format(icsLocalTime), tzid)
		ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format(icsLocalTime), tzid)
		ev.AddProperty(ics.ComponentPropertyRrule, occurrence.RRule(m.NextOccurrence.Time, loc))
		ev.SetSummary(m.Name)
		if desc := description(m); desc != "" {
			ev.SetDescription(desc)
		}
		if u := m.ConnectionDetails.JoinURL; strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			ev.SetURL(u)
		}
	}

	return []byte(cal.Serialize())
}

// eventUID is stable across runs for the same site, name and weekly slot.
func eventUID(siteID string, m model.Meeting, start time.Time) string {
	slot := fmt.Sprintf("%s|%s|%s|%s", siteID, m.Name, start.Weekday(), start.Format("15:04"))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(slot)).String() + "@nextmeeting"
}

func description(m model.Meeting) string {
	var lines []string
	cd := m.ConnectionDetails
	if cd.MeetingID != "" {
		lines = append(lines, "Meeting ID: "+cd.MeetingID)
	}
	if cd.Password != "" {
		lines = append(lines, "Password: "+cd.Password)
	}
	if cd.JoinURL != "" {
		lines = append(lines, "Join: "+cd.JoinURL)
	}
	if m.ContactInfo != "" {
		lines = append(lines, "Contact: "+m.ContactInfo)
	}
	if m.Notes != "" {
		lines = append(lines, m.Notes)
	}
	return strings.Join(lines, "\n")
}

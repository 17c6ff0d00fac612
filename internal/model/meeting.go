package model

import (
	"strings"
	"time"
)

// Platform identifies the conferencing service a meeting is held on.
type Platform string

const (
	PlatformZoom    Platform = "zoom"
	PlatformSkype   Platform = "skype"
	PlatformPhone   Platform = "phone-number"
	PlatformEmail   Platform = "email"
	PlatformUnknown Platform = "unknown"
)

// Gender is the attendance restriction mined from a meeting name.
type Gender string

const (
	GenderAll       Gender = "ALL"
	GenderWomenOnly Gender = "WOMEN_ONLY"
	GenderMenOnly   Gender = "MEN_ONLY"
)

// DefaultDurationMinutes is the duration published for every meeting.
const DefaultDurationMinutes = 60

// Meeting is a single weekly meeting as published to the static site.
type Meeting struct {
	Name              string            `json:"name"`
	NextOccurrence    Timestamp         `json:"nextOccurrence"`
	ConnectionDetails ConnectionDetails `json:"connectionDetails"`
	ContactInfo       string            `json:"contactInfo"`
	FeedbackEmail     string            `json:"feedbackEmail,omitempty"`
	Notes             string            `json:"notes"`
	ParticipantCount  string            `json:"participantCount"`
	DurationMinutes   int               `json:"durationMinutes"`
	Metadata          MeetingMetadata   `json:"metadata"`
}

// ConnectionDetails describes how to join a meeting.
type ConnectionDetails struct {
	Platform                     Platform `json:"platform"`
	MustContactForConnectionInfo bool     `json:"mustContactForConnectionInfo"`
	MeetingID                    string   `json:"meetingId"`
	Password                     string   `json:"password"`
	JoinURL                      string   `json:"joinUrl"`
}

type MeetingMetadata struct {
	HostLocation string       `json:"hostLocation"`
	Language     string       `json:"language"`
	Fellowship   string       `json:"fellowship,omitempty"`
	Restrictions Restrictions `json:"restrictions"`
}

type Restrictions struct {
	OpenMeeting bool   `json:"openMeeting"`
	Gender      Gender `json:"gender"`
}

// End returns the instant the meeting is expected to finish.
func (m Meeting) End() time.Time {
	return m.NextOccurrence.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// timestampLayout keeps a fixed millisecond width so serialized values sort
// lexicographically in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a UTC instant serialized with millisecond precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp converts t to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

func (t Timestamp) String() string {
	return t.UTC().Format(timestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

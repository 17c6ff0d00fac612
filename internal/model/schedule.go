package model

// Schedule types published for every site.
const (
	ScheduleFullWeek     = "fullWeek"
	ScheduleNext24Hours  = "next24Hours"
	ScheduleNextSixHours = "nextSixHours"
)

// Schedule is one published view over a site's sorted meeting list.
type Schedule struct {
	Metadata ScheduleMetadata `json:"metadata"`
	Meetings []Meeting        `json:"meetings"`
}

type ScheduleMetadata struct {
	ScheduleType string    `json:"scheduleType"`
	GeneratedAt  Timestamp `json:"generatedAt"`
	Site         string    `json:"site,omitempty"`
}

package model

import "time"

// RunReport summarizes one invocation of the regeneration job.
type RunReport struct {
	RunID           string       `json:"runId"`
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
	Sites           []SiteReport `json:"sites"`
	InvalidationRef string       `json:"invalidationRef,omitempty"`
	Errors          []string     `json:"errors,omitempty"`
}

// SiteReport is the outcome of one site's fetch-normalize-publish cycle.
type SiteReport struct {
	Name     string `json:"name"`
	SiteID   string `json:"siteId"`
	Meetings int    `json:"meetings"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether any site or job-level step failed.
func (r *RunReport) Failed() bool {
	return len(r.Errors) > 0
}

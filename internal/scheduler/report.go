package scheduler

import "time"

// DrainReport counts what the telemetry drain did with one batch
type DrainReport struct {
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Alerts    int `json:"alerts"`
}

// Attempted is the number of items handed to the classifier
func (r DrainReport) Attempted() int {
	return r.Processed + r.Failed
}

// LivenessReport counts what the liveness sweep did
type LivenessReport struct {
	Stale         int `json:"stale"`
	MarkedOffline int `json:"markedOffline"`
	Failed        int `json:"failed"`
}

// PurgeReport counts records removed by retention
type PurgeReport struct {
	Telemetry      int64 `json:"telemetry"`
	ResolvedAlerts int64 `json:"resolvedAlerts"`
}

// ScrapeReport counts catalog scrape queries
type ScrapeReport struct {
	Queried  int `json:"queried"`
	Recorded int `json:"recorded"`
	Failed   int `json:"failed"`
}

// PassError records a failed pass
type PassError struct {
	Pass  string `json:"pass"`
	Error string `json:"error"`
}

// TickReport summarises one tick
type TickReport struct {
	StartedAt  time.Time      `json:"startedAt"`
	Duration   time.Duration  `json:"duration"`
	Drain      DrainReport    `json:"drain"`
	Liveness   LivenessReport `json:"liveness"`
	Purge      PurgeReport    `json:"purge"`
	Scrape     ScrapeReport   `json:"scrape"`
	PassErrors []PassError    `json:"passErrors,omitempty"`
	Cancelled  bool           `json:"cancelled"`
	// Err is set when the tick itself failed outside any pass
	Err string `json:"err,omitempty"`
}

// Failed reports whether the tick failed outside the per-pass isolation
func (r TickReport) Failed() bool {
	return r.Err != ""
}

// Stats is a snapshot of scheduler activity
type Stats struct {
	Running  bool        `json:"running"`
	Ticks    int64       `json:"ticks"`
	LastTick *TickReport `json:"lastTick,omitempty"`
}

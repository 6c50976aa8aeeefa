// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stats holds the counters of one pipeline run.
type Stats struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Discovered int       `json:"discovered" yaml:"discovered"`
	Processed  int       `json:"processed" yaml:"processed"`
	Failed     int       `json:"failed" yaml:"failed"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Attempted returns the number of files the run tried to process.
func (s Stats) Attempted() int {
	return s.Processed + s.Failed
}

// SuccessRate returns processed/attempted as a percentage, or 0 when
// nothing was attempted.
func (s Stats) SuccessRate() float64 {
	total := s.Attempted()
	if total == 0 {
		return 0
	}
	return float64(s.Processed) / float64(total) * 100
}

// HasFailures reports whether any file failed.
func (s Stats) HasFailures() bool {
	return s.Failed > 0
}

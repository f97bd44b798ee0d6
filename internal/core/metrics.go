package core

import "time"

// Recorder receives step and completion measurements.
// internal/metrics provides the Prometheus implementation.
type Recorder interface {
	RecordStep(entity string, res StepResult, outcome string, d time.Duration)
	RecordFinish(entity string, hookFailed bool)
}

// Step outcomes passed to Recorder.RecordStep.
const (
	OutcomeOK           = "ok"
	OutcomeExhausted    = "exhausted"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

// NoopRecorder discards all measurements.
type NoopRecorder struct{}

func (NoopRecorder) RecordStep(string, StepResult, string, time.Duration) {}
func (NoopRecorder) RecordFinish(string, bool)                           {}

// Package metrics records batch outcomes. Components take a Recorder and
// default to NoopRecorder; a batch configured with a metrics file swaps in
// the Prometheus recorder and writes a textfile at the end of the run.
package metrics

import "time"

// Recorder receives unit-level observations from the batch runner.
type Recorder interface {
	IncUnitOutcome(state string)
	ObserveUnitDuration(state string, d time.Duration)
	AddPages(n int)
	IncNormalization(action string, n int)
	IncBatchErrors()
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncUnitOutcome(string)                     {}
func (NoopRecorder) ObserveUnitDuration(string, time.Duration) {}
func (NoopRecorder) AddPages(int)                              {}
func (NoopRecorder) IncNormalization(string, int)              {}
func (NoopRecorder) IncBatchErrors()                           {}

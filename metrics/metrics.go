package metrics

import "time"

type SweepMetrics interface {
	TasksDue(n int)
	TaskExecuted()
	TaskFailed(buildError bool)
	TaskDeleteFailed()
	SweepSkipped()
	CallLatency(d time.Duration)
	SweepDuration(d time.Duration)
}

type Nop struct{}

func (Nop) TasksDue(int)                {}
func (Nop) TaskExecuted()               {}
func (Nop) TaskFailed(bool)             {}
func (Nop) TaskDeleteFailed()           {}
func (Nop) SweepSkipped()               {}
func (Nop) CallLatency(time.Duration)   {}
func (Nop) SweepDuration(time.Duration) {}

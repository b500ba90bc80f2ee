package metrics

import "time"

// Nop discards everything. Used when no Redis URL is configured.
type Nop struct{}

func (Nop) Increment(string)                 {}
func (Nop) Histogram(string, time.Duration) {}

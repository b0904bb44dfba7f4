// Package routing decides which payment processor takes a request.
package routing

import (
	"github.com/julianomacielferreira/garnize-on-juice/internal/health"
)

// Decision is the outcome of routing one request.
type Decision int

const (
	// None means no upstream is usable; the request fails.
	None Decision = iota
	// Default routes to the preferred processor.
	Default
	// Fallback routes to the secondary processor.
	Fallback
)

func (d Decision) String() string {
	switch d {
	case Default:
		return "default"
	case Fallback:
		return "fallback"
	default:
		return "none"
	}
}

// Choose picks an upstream from a single health snapshot. The default
// processor wins whenever it is healthy and at least as fast as the
// fallback; ties go to default. Both failing yields None.
func Choose(s health.Snapshot) Decision {
	d, f := s.Default, s.Fallback
	switch {
	case !d.Failing && (f.Failing || d.MinResponseTime <= f.MinResponseTime):
		return Default
	case !f.Failing && (d.Failing || f.MinResponseTime <= d.MinResponseTime):
		return Fallback
	default:
		return None
	}
}

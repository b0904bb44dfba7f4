// Package clock centraliza tempo e identidade: timestamps UTC no formato
// ISO-8601 com milissegundos e correlation IDs (UUID v4) para pagamentos.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// ISO8601Milli is the wire format for every timestamp the broker emits,
// e.g. "2025-07-30T12:34:56.789Z".
const ISO8601Milli = "2006-01-02T15:04:05.000Z"

// NowUTC returns the current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Format renders t as ISO-8601 UTC with millisecond precision.
func Format(t time.Time) string {
	return t.UTC().Format(ISO8601Milli)
}

// Parse reads an ISO-8601 timestamp. Accepts the broker's own millisecond
// format as well as plain RFC 3339.
func Parse(s string) (time.Time, error) {
	if t, err := time.Parse(ISO8601Milli, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// NewCorrelationID returns a fresh server-assigned payment identifier.
func NewCorrelationID() string {
	return uuid.NewString()
}

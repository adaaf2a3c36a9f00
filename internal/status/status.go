// Package status defines the host status vocabulary shared by the cache,
// the scheduler and the HTTP layer.
package status

import (
	"fmt"
	"math"
	"time"
)

// Status is the liveness verdict reported for a host.
type Status int

const (
	Unknown Status = iota
	Online
	Offline
)

func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "online":
		*s = Online
	case "offline":
		*s = Offline
	case "unknown", "":
		*s = Unknown
	default:
		return fmt.Errorf("invalid status %q", text)
	}
	return nil
}

// Entry is the value stored in the status cache for one host.
// ResponseTime is in milliseconds, Timestamp in unix seconds.
type Entry struct {
	IsOnline     bool     `json:"is_online"`
	ResponseTime *float64 `json:"response_time"`
	Error        *string  `json:"error"`
	Timestamp    float64  `json:"timestamp"`
}

// NewEntry stamps an entry with the given write time.
func NewEntry(online bool, responseTime *float64, errMsg *string, now time.Time) Entry {
	return Entry{
		IsOnline:     online,
		ResponseTime: responseTime,
		Error:        errMsg,
		Timestamp:    float64(now.UnixNano()) / float64(time.Second),
	}
}

// WrittenAt converts the stored timestamp back to a time. float64 seconds
// only carry sub-microsecond precision, so the result is rounded to it.
func (e Entry) WrittenAt() time.Time {
	sec, frac := math.Modf(e.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).Round(time.Microsecond)
}

// Age reports how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt())
}

// View is what request handlers hand to clients.
type View struct {
	Status       Status     `json:"status"`
	LastCheck    *time.Time `json:"last_check"`
	ResponseTime *float64   `json:"response_time,omitempty"`
	Error        *string    `json:"error,omitempty"`
}

// UnknownView is returned when no entry exists for a host.
func UnknownView() View {
	return View{Status: Unknown}
}

// ViewOf converts a cached entry into its client representation.
func ViewOf(e Entry) View {
	st := Offline
	if e.IsOnline {
		st = Online
	}
	lastCheck := e.WrittenAt().UTC()
	return View{
		Status:       st,
		LastCheck:    &lastCheck,
		ResponseTime: e.ResponseTime,
		Error:        e.Error,
	}
}

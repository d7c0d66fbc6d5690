// Package timestamp implements the fixed-point "seconds:nanoseconds" time
// representation used for media timelines, and half-open ranges over it.
package timestamp

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const nanosPerSecond = 1_000_000_000

var (
	// ErrInvalidFormat reports text that is not a "seconds:nanoseconds" pair.
	ErrInvalidFormat = errors.New("invalid timestamp format")
	// ErrInvalidRange reports a range whose end is not after its start.
	ErrInvalidRange = errors.New("invalid time range")
)

// Timestamp is a point on a media timeline. Nanos is always in [0, 1e9).
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// New builds a timestamp, normalizing nanos into [0, 1e9).
func New(seconds int64, nanos int64) Timestamp {
	seconds += nanos / nanosPerSecond
	nanos %= nanosPerSecond
	if nanos < 0 {
		nanos += nanosPerSecond
		seconds--
	}
	return Timestamp{Seconds: seconds, Nanos: int32(nanos)}
}

// Parse reads a "seconds:nanoseconds" string. Seconds may be negative; the
// nanoseconds field may use fewer than nine digits.
func Parse(text string) (Timestamp, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 2 {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
	}
	secText, nanoText := parts[0], parts[1]
	if !isDigits(strings.TrimPrefix(secText, "-")) || !isDigits(nanoText) {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
	}

	seconds, err := strconv.ParseInt(secText, 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: seconds out of range in %q", ErrInvalidFormat, text)
	}
	nanos, err := strconv.ParseInt(nanoText, 10, 64)
	if err != nil || nanos >= nanosPerSecond {
		return Timestamp{}, fmt.Errorf("%w: nanoseconds must be below 1000000000 in %q", ErrInvalidFormat, text)
	}
	return Timestamp{Seconds: seconds, Nanos: int32(nanos)}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) Timestamp {
	ts, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return ts
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String renders the timestamp with nanoseconds zero-padded to nine digits.
func (t Timestamp) String() string {
	return fmt.Sprintf("%d:%09d", t.Seconds, t.Nanos)
}

// Compare returns -1, 0 or 1 ordering a against b.
func Compare(a, b Timestamp) int {
	switch {
	case a.Seconds < b.Seconds:
		return -1
	case a.Seconds > b.Seconds:
		return 1
	case a.Nanos < b.Nanos:
		return -1
	case a.Nanos > b.Nanos:
		return 1
	default:
		return 0
	}
}

// Before reports whether t sorts strictly before o.
func (t Timestamp) Before(o Timestamp) bool { return Compare(t, o) < 0 }

// After reports whether t sorts strictly after o.
func (t Timestamp) After(o Timestamp) bool { return Compare(t, o) > 0 }

// DurationNanos returns end-start in nanoseconds.
func DurationNanos(start, end Timestamp) (int64, error) {
	if Compare(end, start) <= 0 {
		return 0, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange, end, start)
	}
	diffSec := end.Seconds - start.Seconds
	if diffSec < 0 || diffSec > math.MaxInt64/nanosPerSecond-1 {
		return 0, fmt.Errorf("%w: duration overflows", ErrInvalidRange)
	}
	return diffSec*nanosPerSecond + int64(end.Nanos) - int64(start.Nanos), nil
}

// Add offsets t by nanos, which may be negative.
func (t Timestamp) Add(nanos int64) Timestamp {
	return New(t.Seconds+nanos/nanosPerSecond, int64(t.Nanos)+nanos%nanosPerSecond)
}

// FromTime converts a wall-clock time to a timestamp relative to the Unix epoch.
func FromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Now returns the current wall-clock time as a timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// Time converts t to a UTC wall-clock time.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanos)).UTC()
}

// FromISO8601 parses an RFC 3339 date-time into a timestamp.
func FromISO8601(value string) (Timestamp, error) {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return FromTime(parsed), nil
}

// ISO8601 renders t as an RFC 3339 UTC date-time.
func (t Timestamp) ISO8601() string {
	return t.Time().Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Timestamp) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

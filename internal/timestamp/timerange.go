package timestamp

import (
	"fmt"
	"strings"
)

// TimeRange is the half-open interval [Start, End). A valid range has End
// strictly after Start.
type TimeRange struct {
	Start Timestamp `json:"start"`
	End   Timestamp `json:"end"`
}

// ParseRange parses both endpoints and validates the result.
func ParseRange(start, end string) (TimeRange, error) {
	s, err := Parse(start)
	if err != nil {
		return TimeRange{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return TimeRange{}, err
	}
	r := TimeRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}

// Validate fails with ErrInvalidRange unless End is after Start.
func (r TimeRange) Validate() error {
	if Compare(r.End, r.Start) <= 0 {
		return fmt.Errorf("%w: end %s must be after start %s", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Overlaps reports whether the two ranges share any instant. Adjacent ranges
// do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports whether ts falls inside r.
func (r TimeRange) Contains(ts Timestamp) bool {
	return !ts.Before(r.Start) && ts.Before(r.End)
}

// Intersect returns the common part of r and o, if any.
func (r TimeRange) Intersect(o TimeRange) (TimeRange, bool) {
	if !r.Overlaps(o) {
		return TimeRange{}, false
	}
	out := r
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	return out, true
}

// Subtract returns the parts of r lying outside o, in ascending order.
// The result has zero, one or two ranges.
func (r TimeRange) Subtract(o TimeRange) []TimeRange {
	if !r.Overlaps(o) {
		return []TimeRange{r}
	}
	var out []TimeRange
	if r.Start.Before(o.Start) {
		out = append(out, TimeRange{Start: r.Start, End: o.Start})
	}
	if o.End.Before(r.End) {
		out = append(out, TimeRange{Start: o.End, End: r.End})
	}
	return out
}

// DurationNanos returns the length of r.
func (r TimeRange) DurationNanos() (int64, error) {
	return DurationNanos(r.Start, r.End)
}

// BoundingUnion returns the smallest range covering all inputs. It returns
// false when ranges is empty.
func BoundingUnion(ranges ...TimeRange) (TimeRange, bool) {
	if len(ranges) == 0 {
		return TimeRange{}, false
	}
	out := ranges[0]
	for _, r := range ranges[1:] {
		if r.Start.Before(out.Start) {
			out.Start = r.Start
		}
		if r.End.After(out.End) {
			out.End = r.End
		}
	}
	return out, true
}

// String renders the range in the "[start_end)" notation.
func (r TimeRange) String() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(r.Start.String())
	b.WriteByte('_')
	b.WriteString(r.End.String())
	b.WriteByte(')')
	return b.String()
}

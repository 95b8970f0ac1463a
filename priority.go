package prisched

import (
	"fmt"
	"strconv"
)

// Priority is the scheduling priority of a [Thread]. Larger values run first.
type Priority int

const (
	// PriorityMinimum is the lowest priority a thread can have.
	PriorityMinimum Priority = 0
	// PriorityDefault is the priority of a new thread.
	PriorityDefault Priority = 1
	// PriorityMaximum is the highest priority a thread can have.
	PriorityMaximum Priority = 7
)

var (
	strPriorityMap = map[Priority]string{
		PriorityMinimum: "minimum",
		PriorityDefault: "default",
		PriorityMaximum: "maximum",
	}

	typePriorityMap = map[string]Priority{
		"minimum": PriorityMinimum,
		"min":     PriorityMinimum,
		"default": PriorityDefault,
		"maximum": PriorityMaximum,
		"max":     PriorityMaximum,
	}
)

// ParsePriority creates a new [Priority] from the given value. Names
// ("minimum", "default", "maximum"), decimal strings and integers are
// accepted as long as they fall within the valid range.
func ParsePriority(p any) (Priority, error) {
	var v Priority
	switch p := p.(type) {
	case Priority:
		v = p
	case string:
		return parsePriorityString(p)
	case fmt.Stringer:
		return parsePriorityString(p.String())
	case int:
		v = Priority(p)
	case int64:
		v = Priority(p)
	case int32:
		v = Priority(p)
	default:
		return PriorityDefault, fmt.Errorf("%w: unsupported type %T", ErrParsePriority, p)
	}

	if !v.IsValid() {
		return PriorityDefault, fmt.Errorf("%w: %d", ErrParsePriority, int(v))
	}
	return v, nil
}

func parsePriorityString(s string) (Priority, error) {
	if v, ok := typePriorityMap[s]; ok {
		return v, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return PriorityDefault, fmt.Errorf("%w: %q", ErrParsePriority, s)
	}
	return ParsePriority(n)
}

// IsValid reports whether p lies within [PriorityMinimum, PriorityMaximum].
func (p Priority) IsValid() bool {
	return p >= PriorityMinimum && p <= PriorityMaximum
}

func (p Priority) String() string {
	if s, ok := strPriorityMap[p]; ok {
		return s
	}
	return strconv.Itoa(int(p))
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Priorities returns every valid priority in ascending order.
func Priorities() []Priority {
	all := make([]Priority, 0, PriorityMaximum-PriorityMinimum+1)
	for p := PriorityMinimum; p <= PriorityMaximum; p++ {
		all = append(all, p)
	}
	return all
}

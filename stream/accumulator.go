package stream

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBufferLimit = errors.New("accumulated output exceeds limit")

// Accumulator concatenates deltas in arrival order up to a byte limit.
type Accumulator struct {
	buf strings.Builder
	max int
}

// NewAccumulator returns an accumulator bounded to max bytes; max <= 0 means unbounded.
func NewAccumulator(max int) *Accumulator {
	return &Accumulator{max: max}
}

// Append adds delta to the buffer. A delta that would cross the limit is
// rejected whole and the buffer is left unchanged.
func (a *Accumulator) Append(delta string) error {
	if a.max > 0 && a.buf.Len()+len(delta) > a.max {
		return fmt.Errorf("%w: %d bytes", ErrBufferLimit, a.max)
	}
	a.buf.WriteString(delta)
	return nil
}

func (a *Accumulator) String() string {
	return a.buf.String()
}

func (a *Accumulator) Len() int {
	return a.buf.Len()
}

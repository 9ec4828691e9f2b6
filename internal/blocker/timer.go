package blocker

import (
	"fmt"

	"github.com/roach88/absim/internal/ir"
)

// Compare orders timers by duration. Delta is shorter than every Timed.
func Compare(a, b Timer) int {
	fa, fb := a.Femtos(), b.Femtos()
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

// Min returns the shorter timer. A nil argument is ignored.
func Min(a, b Timer) Timer {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case Compare(b, a) < 0:
		return b
	}
	return a
}

// Earliest returns the shortest timer, or false when there is none.
func Earliest(timers ...Timer) (Timer, bool) {
	var earliest Timer
	for _, t := range timers {
		earliest = Min(earliest, t)
	}
	return earliest, earliest != nil
}

// Subtract returns a - b. The result is Delta when they are equal.
func Subtract(a, b Timer) (Timer, error) {
	diff := a.Femtos() - b.Femtos()
	if diff < 0 {
		return nil, fmt.Errorf("subtract %s from %s: negative duration", b, a)
	}
	return NewTimer(diff, ir.UnitFS)
}

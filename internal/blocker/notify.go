package blocker

import "golang.org/x/exp/slices"

// Fire applies a set of fired events to an event wait. The process becomes
// ready when the wait is any-of and at least one awaited event fired, or when
// every awaited event has fired. Otherwise it keeps waiting on the remaining
// events with its timeout unchanged. The second result reports whether
// anything changed.
func Fire(w EventWait, fired []string) (Blocker, bool) {
	remaining := make([]string, 0, len(w.Events))
	for _, e := range w.Events {
		if !slices.Contains(fired, e) {
			remaining = append(remaining, e)
		}
	}
	if len(remaining) == len(w.Events) {
		return w, false
	}
	if w.Choice || len(remaining) == 0 {
		return None{}, true
	}
	return EventWait{Events: remaining, Choice: w.Choice, Timeout: w.Timeout}, true
}

// Advance applies the passing of elapsed time to a timed blocker, or to the
// timeout of an event wait. Entries equal to elapsed fire and become ready;
// longer ones keep the remainder. Blockers without a timer are unchanged.
func Advance(b Blocker, elapsed Timer) (Blocker, bool, error) {
	switch x := b.(type) {
	case Timed:
		if Compare(x, elapsed) == 0 {
			return None{}, true, nil
		}
		rest, err := Subtract(x, elapsed)
		if err != nil {
			return nil, false, err
		}
		return rest, false, nil
	case EventWait:
		if x.Timeout == nil {
			return x, false, nil
		}
		if Compare(x.Timeout, elapsed) == 0 {
			return None{}, true, nil
		}
		rest, err := Subtract(x.Timeout, elapsed)
		if err != nil {
			return nil, false, err
		}
		x.Timeout = rest
		return x, false, nil
	}
	return b, false, nil
}

// TimerOf returns the duration a blocker waits for on the time axis: the
// blocker itself for Delta and Timed, the timeout for an EventWait.
func TimerOf(b Blocker) (Timer, bool) {
	switch x := b.(type) {
	case Delta:
		return x, true
	case Timed:
		return x, true
	case EventWait:
		if x.Timeout != nil {
			return x.Timeout, true
		}
	}
	return nil, false
}

package blocker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/absim/internal/ir"
)

func TestNewTimer(t *testing.T) {
	tm, err := NewTimer(0, ir.UnitNS)
	require.NoError(t, err)
	assert.Equal(t, Delta{}, tm)

	tm, err = NewTimer(3000, ir.UnitPS)
	require.NoError(t, err)
	assert.Equal(t, Timed{Amount: 3, Unit: ir.UnitNS}, tm)

	_, err = NewTimer(-1, ir.UnitNS)
	assert.Error(t, err)
	_, err = NewTimer(1, "min")
	assert.Error(t, err)

	assert.Panics(t, func() { MustTimer(-1, ir.UnitNS) })
}

func TestNewTimer_Range(t *testing.T) {
	// About 9223 seconds fit in int64 femtoseconds.
	tm, err := NewTimer(9_000, ir.UnitSec)
	require.NoError(t, err)
	assert.Equal(t, int64(9_000_000_000_000_000_000), tm.Femtos())

	_, err = NewTimer(10_000, ir.UnitSec)
	assert.ErrorIs(t, err, ir.ErrDurationOverflow)
	_, err = NewTimer(9_300_000, ir.UnitMS)
	assert.ErrorIs(t, err, ir.ErrDurationOverflow)

	// The longest wait still orders after the shortest one.
	long := MustTimer(9_000, ir.UnitSec)
	short := MustTimer(1, ir.UnitNS)
	assert.Equal(t, 1, Compare(long, short))
	earliest, ok := Earliest(long, short)
	require.True(t, ok)
	assert.Equal(t, short, earliest)

	rest, err := Subtract(long, short)
	require.NoError(t, err)
	assert.Equal(t, Timed{Amount: 8_999_999_999_999, Unit: ir.UnitNS}, rest)
}

func TestCompare_TotalOrder(t *testing.T) {
	delta := Delta{}
	ps := MustTimer(999, ir.UnitPS)
	ns := MustTimer(1, ir.UnitNS)

	assert.Equal(t, -1, Compare(delta, ps))
	assert.Equal(t, -1, Compare(ps, ns))
	assert.Equal(t, 1, Compare(ns, delta))
	assert.Equal(t, 0, Compare(ns, MustTimer(1000, ir.UnitPS)))
}

func TestEarliest(t *testing.T) {
	_, ok := Earliest()
	assert.False(t, ok)

	e, ok := Earliest(MustTimer(5, ir.UnitNS), MustTimer(3, ir.UnitNS), nil)
	require.True(t, ok)
	assert.Equal(t, MustTimer(3, ir.UnitNS), e)
}

func TestSubtract(t *testing.T) {
	rest, err := Subtract(MustTimer(5, ir.UnitNS), MustTimer(3, ir.UnitNS))
	require.NoError(t, err)
	assert.Equal(t, Timed{Amount: 2, Unit: ir.UnitNS}, rest)

	rest, err = Subtract(MustTimer(1, ir.UnitUS), MustTimer(1, ir.UnitUS))
	require.NoError(t, err)
	assert.Equal(t, Delta{}, rest)

	_, err = Subtract(MustTimer(1, ir.UnitNS), MustTimer(2, ir.UnitNS))
	assert.Error(t, err)
}

func TestFire(t *testing.T) {
	t.Run("all-of single event unblocks", func(t *testing.T) {
		b, changed := Fire(NewEventWait([]string{"E"}, false, nil), []string{"E"})
		assert.True(t, changed)
		assert.Equal(t, None{}, b)
	})

	t.Run("all-of reduces", func(t *testing.T) {
		b, changed := Fire(NewEventWait([]string{"E", "F"}, false, nil), []string{"E"})
		assert.True(t, changed)
		assert.Equal(t, EventWait{Events: []string{"F"}}, b)
	})

	t.Run("any-of unblocks on one", func(t *testing.T) {
		b, changed := Fire(NewEventWait([]string{"E", "F"}, true, nil), []string{"F"})
		assert.True(t, changed)
		assert.Equal(t, None{}, b)
	})

	t.Run("unrelated event", func(t *testing.T) {
		w := NewEventWait([]string{"E"}, true, nil)
		b, changed := Fire(w, []string{"G"})
		assert.False(t, changed)
		assert.Equal(t, w, b)
	})

	t.Run("timeout is preserved", func(t *testing.T) {
		timeout := MustTimer(7, ir.UnitNS)
		b, _ := Fire(NewEventWait([]string{"E", "F"}, false, timeout), []string{"F"})
		assert.Equal(t, EventWait{Events: []string{"E"}, Timeout: timeout}, b)
	})
}

func TestAdvance(t *testing.T) {
	three := MustTimer(3, ir.UnitNS)

	b, fired, err := Advance(MustTimer(5, ir.UnitNS), three)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, Timed{Amount: 2, Unit: ir.UnitNS}, b)

	b, fired, err = Advance(three, three)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, None{}, b)

	w := NewEventWait([]string{"E"}, true, MustTimer(4, ir.UnitNS))
	b, fired, err = Advance(w, three)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, EventWait{Events: []string{"E"}, Choice: true, Timeout: MustTimer(1, ir.UnitNS)}, b)

	b, fired, err = Advance(NewEventWait([]string{"E"}, true, three), three)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, None{}, b)

	b, fired, err = Advance(Terminated{}, three)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, Terminated{}, b)
}

func TestTimerOf(t *testing.T) {
	tm, ok := TimerOf(Delta{})
	assert.True(t, ok)
	assert.Equal(t, Delta{}, tm)

	_, ok = TimerOf(NewEventWait([]string{"E"}, true, nil))
	assert.False(t, ok)

	tm, ok = TimerOf(NewEventWait([]string{"E"}, true, Delta{}))
	assert.True(t, ok)
	assert.Equal(t, Delta{}, tm)

	_, ok = TimerOf(None{})
	assert.False(t, ok)
}

func TestIsReadyAndEqual(t *testing.T) {
	assert.True(t, IsReady(nil))
	assert.True(t, IsReady(None{}))
	assert.False(t, IsReady(Delta{}))

	assert.True(t, Equal(nil, None{}))
	assert.True(t, Equal(MustTimer(1, ir.UnitNS), MustTimer(1000, ir.UnitPS)))
	assert.False(t, Equal(NewEventWait([]string{"a"}, true, nil), NewEventWait([]string{"a"}, false, nil)))
	assert.True(t, Equal(NewEventWait([]string{"b", "a"}, true, nil), NewEventWait([]string{"a", "b", "a"}, true, nil)))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "events(a|b) timeout 2ns", NewEventWait([]string{"b", "a"}, true, MustTimer(2, ir.UnitNS)).String())
	assert.Equal(t, "events(a&b)", NewEventWait([]string{"a", "b"}, false, nil).String())
	assert.Equal(t, "ready", None{}.String())
}

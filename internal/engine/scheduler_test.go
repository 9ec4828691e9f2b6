package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/absim/internal/blocker"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/state"
	"github.com/roach88/absim/internal/value"
)

func emptyModel() *ir.Model {
	return &ir.Model{Name: "sched", Events: []string{"E", "F"}}
}

// withWaits builds a state whose processes wait on the given blockers.
func withWaits(waits map[string]blocker.Blocker) *state.Builder {
	b := state.New()
	for name, w := range waits {
		b.Processes[name] = &state.Process{WaitingFor: w}
	}
	return b
}

func advanceOnce(t *testing.T, e *accEngine, b *state.Builder) (*state.Snapshot, info.Accesses) {
	t.Helper()
	ts, err := e.AdvanceSimulation(b.Freeze(), e.Handler().Empty())
	require.NoError(t, err)
	require.Len(t, ts, 1)
	return ts[0].State, ts[0].Info
}

func TestAdvance_Quiescence(t *testing.T) {
	e := newTestEngine(emptyModel())

	tests := map[string]*state.Builder{
		"no processes": state.New(),
		"only events": withWaits(map[string]blocker.Blocker{
			"p": blocker.NewEventWait([]string{"E"}, false, nil),
			"q": blocker.NewEventWait([]string{"E", "F"}, true, nil),
		}),
		"terminated": withWaits(map[string]blocker.Blocker{"p": blocker.Terminated{}}),
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			ts, err := e.AdvanceSimulation(b.Freeze(), e.Handler().Empty())
			require.NoError(t, err)
			assert.Empty(t, ts)
		})
	}
}

func TestAdvance_DeltaCycleWakesAllDeltaWaiters(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.Delta{},
		"q": blocker.Delta{},
		"r": blocker.MustTimer(5, ir.UnitNS),
	})

	s, acc := advanceOnce(t, e, b)
	assert.Equal(t, blocker.None{}, s.WaitingFor("p"))
	assert.Equal(t, blocker.None{}, s.WaitingFor("q"))
	// No simulated time elapsed.
	assert.Equal(t, blocker.MustTimer(5, ir.UnitNS), s.WaitingFor("r"))
	assert.Equal(t, []string{"p:delta", "q:delta"}, acc.Wakes)
}

func TestAdvance_DeltaCycleDeliversDeltaNotifications(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.NewEventWait([]string{"E"}, false, nil),
		"q": blocker.NewEventWait([]string{"F"}, false, nil),
	})
	b.Global.Pending["E"] = blocker.Delta{}
	b.Global.Pending["F"] = blocker.MustTimer(1, ir.UnitNS)

	s, acc := advanceOnce(t, e, b)
	assert.Equal(t, blocker.None{}, s.WaitingFor("p"))
	assert.Equal(t, blocker.NewEventWait([]string{"F"}, false, nil), s.WaitingFor("q"))
	assert.Equal(t, map[string]blocker.Timer{"F": blocker.MustTimer(1, ir.UnitNS)}, s.Pending())
	assert.Equal(t, []string{"p:events"}, acc.Wakes)
}

func TestAdvance_TimeFiresEarliestOnly(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.MustTimer(5, ir.UnitNS),
		"q": blocker.MustTimer(3, ir.UnitNS),
	})

	s, acc := advanceOnce(t, e, b)
	assert.Equal(t, blocker.None{}, s.WaitingFor("q"))
	assert.Equal(t, blocker.MustTimer(2, ir.UnitNS), s.WaitingFor("p"))
	assert.Equal(t, []string{"q:time"}, acc.Wakes)
}

func TestAdvance_TimeAcrossUnits(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.MustTimer(1, ir.UnitUS),
		"q": blocker.MustTimer(250, ir.UnitNS),
	})

	s, _ := advanceOnce(t, e, b)
	assert.Equal(t, blocker.None{}, s.WaitingFor("q"))
	assert.Equal(t, blocker.MustTimer(750, ir.UnitNS), s.WaitingFor("p"))
}

func TestAdvance_LongWaitOrdersAfterShortWait(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"a": blocker.MustTimer(9_000, ir.UnitSec),
		"b": blocker.MustTimer(1, ir.UnitNS),
	})

	s, acc := advanceOnce(t, e, b)
	assert.Equal(t, blocker.None{}, s.WaitingFor("b"))
	assert.Equal(t, blocker.MustTimer(8_999_999_999_999, ir.UnitNS), s.WaitingFor("a"))
	assert.Equal(t, []string{"b:time"}, acc.Wakes)
}

func TestMakeStep_WaitPastTimeRange(t *testing.T) {
	m := emptyModel()
	m.Processes = []ir.Process{{Name: "a", Function: "long"}, {Name: "b", Function: "short"}}
	m.Functions = map[string]ir.Function{
		"long":  {Body: body(cnst(ir.IntLit(10_000)), cnst(ir.UnitLit(ir.UnitSec)), op(ir.OpWait, 2))},
		"short": {Body: waitNS(1)},
	}
	e := newTestEngine(m)
	ctx := context.Background()
	start := initial(t, e)

	_, err := e.MakeStep(ctx, start, "a")
	require.Error(t, err)
	assert.True(t, IsContractViolation(err), "got %v", err)
	assert.Contains(t, err.Error(), ir.ErrDurationOverflow.Error())

	ts, err := e.MakeStep(ctx, start, "b")
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, blocker.MustTimer(1, ir.UnitNS), ts[0].State.WaitingFor("b"))
}

func TestAdvance_PendingEventFiresWithTime(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.NewEventWait([]string{"E"}, false, blocker.MustTimer(9, ir.UnitNS)),
		"q": blocker.NewEventWait([]string{"E", "F"}, false, nil),
		"r": blocker.MustTimer(10, ir.UnitNS),
	})
	b.Global.Pending["E"] = blocker.MustTimer(4, ir.UnitNS)

	s, acc := advanceOnce(t, e, b)
	assert.Equal(t, blocker.None{}, s.WaitingFor("p"))
	assert.Equal(t, blocker.NewEventWait([]string{"F"}, false, nil), s.WaitingFor("q"))
	assert.Equal(t, blocker.MustTimer(6, ir.UnitNS), s.WaitingFor("r"))
	assert.Empty(t, s.Pending())
	assert.Equal(t, []string{"p:events"}, acc.Wakes)
}

func TestAdvance_EventWaitTimeout(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.NewEventWait([]string{"E"}, false, blocker.MustTimer(3, ir.UnitNS)),
		"q": blocker.NewEventWait([]string{"F"}, true, blocker.MustTimer(8, ir.UnitNS)),
	})

	s, acc := advanceOnce(t, e, b)
	assert.Equal(t, blocker.None{}, s.WaitingFor("p"))
	assert.Equal(t, blocker.NewEventWait([]string{"F"}, true, blocker.MustTimer(5, ir.UnitNS)), s.WaitingFor("q"))
	assert.Equal(t, []string{"p:time"}, acc.Wakes)
}

func TestAdvance_StoppedIsTerminal(t *testing.T) {
	e := newTestEngine(emptyModel(), WithStopMode(ir.StopAfterDelta))
	b := withWaits(map[string]blocker.Blocker{"p": blocker.Delta{}})
	b.Global.Stopped = true

	ts, err := e.AdvanceSimulation(b.Freeze(), e.Handler().Empty())
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestNotifyEvents_Immediate(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.NewEventWait([]string{"E"}, false, nil),
		"q": blocker.NewEventWait([]string{"E", "F"}, false, nil),
		"r": blocker.NewEventWait([]string{"F"}, true, nil),
	})
	b.Global.Pending["E"] = blocker.MustTimer(2, ir.UnitNS)

	acc := e.NotifyEvents(b, e.Handler().Empty(), "E", nil)

	assert.Equal(t, blocker.None{}, b.Processes["p"].WaitingFor)
	assert.Equal(t, blocker.NewEventWait([]string{"F"}, false, nil), b.Processes["q"].WaitingFor)
	assert.Equal(t, blocker.NewEventWait([]string{"F"}, true, nil), b.Processes["r"].WaitingFor)
	assert.Empty(t, b.Global.Pending)
	assert.Equal(t, []string{"p:events"}, acc.Wakes)
}

func TestNotifyEvents_ScheduledMinimumWins(t *testing.T) {
	e := newTestEngine(emptyModel())
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.NewEventWait([]string{"E"}, false, nil),
	})

	e.NotifyEvents(b, e.Handler().Empty(), "E", blocker.MustTimer(10, ir.UnitNS))
	e.NotifyEvents(b, e.Handler().Empty(), "E", blocker.MustTimer(4, ir.UnitNS))
	assert.Equal(t, blocker.MustTimer(4, ir.UnitNS), b.Global.Pending["E"])

	e.NotifyEvents(b, e.Handler().Empty(), "E", blocker.MustTimer(10, ir.UnitNS))
	assert.Equal(t, blocker.MustTimer(4, ir.UnitNS), b.Global.Pending["E"])

	e.NotifyEvents(b, e.Handler().Empty(), "E", blocker.Delta{})
	assert.Equal(t, blocker.Delta{}, b.Global.Pending["E"])

	// Scheduling wakes nobody.
	assert.Equal(t, blocker.NewEventWait([]string{"E"}, false, nil), b.Processes["p"].WaitingFor)
}

func TestNotifyEvents_UnconsideredIsNoop(t *testing.T) {
	e := newTestEngine(emptyModel(), WithConsideredEvents([]string{"F"}))
	b := withWaits(map[string]blocker.Blocker{
		"p": blocker.NewEventWait([]string{"E"}, false, nil),
	})
	before := b.Freeze().Key()

	e.NotifyEvents(b, e.Handler().Empty(), "E", nil)
	e.NotifyEvents(b, e.Handler().Empty(), "E", blocker.MustTimer(1, ir.UnitNS))
	assert.Equal(t, before, b.Freeze().Key())
}

func stopFixture() *state.Builder {
	b := withWaits(map[string]blocker.Blocker{
		"ready":   blocker.None{},
		"delta":   blocker.Delta{},
		"timed":   blocker.MustTimer(5, ir.UnitNS),
		"waiting": blocker.NewEventWait([]string{"E"}, false, nil),
	})
	b.Processes["ready"].Frames = []state.Frame{{Function: "f", Next: 2}}
	b.Processes["timed"].Frames = []state.Frame{{Function: "g", Next: 1}}
	b.Global.Pending["E"] = blocker.MustTimer(1, ir.UnitNS)
	return b
}

func TestStopSimulation_Immediate(t *testing.T) {
	e := newTestEngine(emptyModel(), WithStopMode(ir.StopImmediate))
	b := stopFixture()
	e.StopSimulation(b, e.Handler().Empty())

	s := b.Freeze()
	assert.True(t, s.Stopped())
	assert.Empty(t, s.Pending())
	for _, name := range s.ProcessNames() {
		assert.Equal(t, blocker.Terminated{}, s.WaitingFor(name), name)
		assert.False(t, s.Started(name), name)
	}
	assert.True(t, e.ReadySet(s).Empty())
	assert.False(t, e.CanEndEvaluation(s))

	ts, err := e.EndEvaluation(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestStopSimulation_AfterDelta(t *testing.T) {
	e := newTestEngine(emptyModel(), WithStopMode(ir.StopAfterDelta))
	b := stopFixture()
	e.StopSimulation(b, e.Handler().Empty())

	s := b.Freeze()
	assert.True(t, s.Stopped())
	assert.Empty(t, s.Pending())
	assert.Equal(t, blocker.None{}, s.WaitingFor("ready"))
	assert.True(t, s.Started("ready"))
	assert.Equal(t, blocker.NewEventWait([]string{"E"}, false, nil), s.WaitingFor("waiting"))
	assert.Equal(t, blocker.Terminated{}, s.WaitingFor("delta"))
	assert.Equal(t, blocker.Terminated{}, s.WaitingFor("timed"))
	assert.False(t, s.Started("timed"))

	assert.Equal(t, []string{"ready"}, e.ReadySet(s).Ready)
	assert.True(t, e.CanEndEvaluation(s))
}

func TestReadySet(t *testing.T) {
	e := newTestEngine(emptyModel(), WithConsideredEvents([]string{"E"}))
	b := withWaits(map[string]blocker.Blocker{
		"a": blocker.None{},
		"b": blocker.NewEventWait([]string{"E", "F"}, true, nil),  // F untracked, any-of
		"c": blocker.NewEventWait([]string{"E", "F"}, false, nil), // E still needed
		"d": blocker.NewEventWait([]string{"F"}, false, nil),      // all untracked
		"e": blocker.NewEventWait([]string{"E"}, true, nil),
		"f": blocker.Delta{},
	})
	s := b.Freeze()

	rs := e.ReadySet(s)
	assert.Equal(t, []string{"a"}, rs.Ready)
	assert.Equal(t, []string{"b", "d"}, rs.Maybe)
	assert.Equal(t, []string{"a", "b", "d"}, rs.All())

	var cache ReadyCache
	assert.Equal(t, rs, e.CachedReadySet(&cache, s))
	assert.Equal(t, rs, e.CachedReadySet(&cache, s))
	assert.Equal(t, 1, cache.Hits)
	assert.Equal(t, 1, cache.Misses)

	other := withWaits(map[string]blocker.Blocker{"a": blocker.Delta{}}).Freeze()
	assert.True(t, e.CachedReadySet(&cache, other).Empty())
	assert.Equal(t, 2, cache.Misses)
}

// updateModel has a writer that requests an update of channel "sig" and a
// reader sensitive to E, which the update notifies.
func updateModel() *ir.Model {
	sig := ir.ChannelLit("sig")
	return &ir.Model{
		Name:     "update",
		Events:   []string{"E"},
		Globals:  map[string]ir.Literal{"cur": ir.IntLit(0), "next": ir.IntLit(0)},
		Channels: []ir.Channel{{Name: "sig", Update: "sig_update"}, {Name: "aux", Update: "aux_update"}},
		Processes: []ir.Process{
			{Name: "writer", Function: "write", Receiver: &sig},
			{Name: "reader", Function: "read", Sensitivity: []string{"E"}, DontInitialize: true},
		},
		Functions: map[string]ir.Function{
			"write": {Body: body(
				cnst(ir.IntLit(5)), store("next"),
				op(ir.OpRequestUpdate, 0),
				waitNS(10),
			)},
			"read": {Body: body(load("cur"), op(ir.OpPop, 0))},
			"sig_update": {Body: body(
				load("next"), store("cur"),
				cnst(ir.EventLit("E")), cnst(ir.TimeLit(0, ir.UnitNS)), op(ir.OpNotify, 2),
			)},
			"aux_update": {Body: body(load("cur"), cnst(ir.IntLit(1)), binary("+"), store("next"))},
		},
	}
}

func TestEndEvaluation_UpdatePhaseThenDelta(t *testing.T) {
	e := newTestEngine(updateModel())
	ctx := context.Background()
	s := initial(t, e)

	assert.Equal(t, []string{"writer"}, e.ReadySet(s).Ready)
	ts, err := e.MakeStep(ctx, s, "writer")
	require.NoError(t, err)
	require.Len(t, ts, 1)
	s = ts[0].State
	assert.Equal(t, []string{"sig"}, s.UpdateRequests())
	assert.True(t, e.ReadySet(s).Empty())

	ts, err = e.EndEvaluation(ctx, s)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	s = ts[0].State

	cur, _ := s.Var("cur")
	assert.Equal(t, value.Int(5), cur)
	assert.Empty(t, s.UpdateRequests())
	assert.Empty(t, s.Pending())
	// The delta notification from the update woke the reader; the writer
	// still waits.
	assert.Equal(t, blocker.None{}, s.WaitingFor("reader"))
	assert.Equal(t, blocker.MustTimer(10, ir.UnitNS), s.WaitingFor("writer"))
	assert.Equal(t, []string{"update:sig:next"}, ts[0].Info.Reads)
	assert.Equal(t, []string{"update:sig:cur"}, ts[0].Info.Writes)
	assert.Equal(t, []string{"reader:events"}, ts[0].Info.Wakes)
}

func TestDoUpdateCycle_ChainsInRequestOrder(t *testing.T) {
	e := newTestEngine(updateModel())
	b := state.New()
	b.Global.Vars["cur"] = value.Int(1)
	b.Global.Vars["next"] = value.Int(9)
	b.RequestUpdate("aux")
	b.RequestUpdate("sig")

	ts, err := e.DoUpdateCycle(context.Background(), b.Freeze(), e.Handler().Empty())
	require.NoError(t, err)
	require.Len(t, ts, 1)

	// aux runs first (next = cur + 1 = 2), then sig (cur = next = 2).
	cur, _ := ts[0].State.Var("cur")
	next, _ := ts[0].State.Var("next")
	assert.Equal(t, value.Int(2), cur)
	assert.Equal(t, value.Int(2), next)
	assert.Equal(t, map[string]blocker.Timer{"E": blocker.Delta{}}, ts[0].State.Pending())
}

func TestUpdatePort_WaitIsContractViolation(t *testing.T) {
	m := updateModel()
	m.Functions["aux_update"] = ir.Function{Body: waitNS(1)}
	e := newTestEngine(m)
	b := state.New()

	_, err := e.UpdatePort(context.Background(), b.Freeze(), e.Handler().Empty(), "aux")
	require.Error(t, err)
	assert.True(t, IsContractViolation(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "update:aux", re.Thread)

	_, err = e.UpdatePort(context.Background(), b.Freeze(), e.Handler().Empty(), "nope")
	assert.True(t, IsContractViolation(err))
}

func TestEndEvaluation_ForkedUpdatesMerge(t *testing.T) {
	m := updateModel()
	m.Globals["flag"] = ir.UnknownLit()
	// Both branches write the same value, so the forked paths meet again.
	m.Functions["aux_update"] = ir.Function{Body: body(
		load("flag"), branch(4),
		cnst(ir.IntLit(3)), jump(5),
		cnst(ir.IntLit(3)),
		store("next"),
	)}
	e := newTestEngine(m)

	s := initial(t, e).Thaw()
	s.Processes["writer"].WaitingFor = blocker.MustTimer(1, ir.UnitNS)
	s.RequestUpdate("aux")

	ts, err := e.EndEvaluation(context.Background(), s.Freeze())
	require.NoError(t, err)
	require.Len(t, ts, 1)
	next, _ := ts[0].State.Var("next")
	assert.Equal(t, value.Int(3), next)
	assert.Equal(t, []string{"writer:time"}, ts[0].Info.Wakes)
}

func TestSuccessors(t *testing.T) {
	e := newTestEngine(updateModel())
	ctx := context.Background()
	s := initial(t, e)

	steps, err := e.Successors(ctx, s, nil)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "process:writer", steps[0].Label)

	next := steps[0].Transitions[0].State
	var cache ReadyCache
	steps, err = e.Successors(ctx, next, &cache)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, EndEvaluationLabel, steps[0].Label)
	assert.Equal(t, 1, cache.Misses)
}

func TestInitialState(t *testing.T) {
	e := newTestEngine(updateModel())
	s := initial(t, e)

	assert.Equal(t, blocker.None{}, s.WaitingFor("writer"))
	assert.Equal(t, blocker.NewEventWait([]string{"E"}, true, nil), s.WaitingFor("reader"))
	v, ok := s.Var("cur")
	require.True(t, ok)
	assert.Equal(t, value.Int(0), v)
	assert.False(t, s.Stopped())

	again := initial(t, e)
	assert.Equal(t, s.Key(), again.Key())
}

func TestSuccessors_ImpreciseStepIsReportedAlone(t *testing.T) {
	m := &ir.Model{
		Name:   "mixed",
		Events: []string{"E"},
		Processes: []ir.Process{
			{Name: "fuzzy", Function: "fuzzy"},
			{Name: "sharp", Function: "sharp"},
		},
		Functions: map[string]ir.Function{
			"fuzzy": {Body: body(cnst(ir.UnknownLit()), cnst(ir.UnitLit(ir.UnitNS)), op(ir.OpWait, 2))},
			"sharp": {Body: waitNS(1)},
		},
	}
	e := newTestEngine(m)

	steps, err := e.Successors(context.Background(), initial(t, e), nil)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "process:fuzzy", steps[0].Label)
	assert.True(t, IsPrecisionError(steps[0].Err))
	assert.Empty(t, steps[0].Transitions)

	assert.Equal(t, "process:sharp", steps[1].Label)
	assert.NoError(t, steps[1].Err)
	assert.Len(t, steps[1].Transitions, 1)
}

func TestSuccessors_ContractViolationFailsTheCall(t *testing.T) {
	m := singleProcess(nil, body(load("nowhere"), op(ir.OpPop, 0)))
	e := newTestEngine(m)

	_, err := e.Successors(context.Background(), initial(t, e), nil)
	assert.True(t, IsContractViolation(err))
}

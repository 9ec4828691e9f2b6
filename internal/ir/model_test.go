package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralKind(t *testing.T) {
	tests := []struct {
		lit  Literal
		kind LiteralKind
	}{
		{IntLit(0), LitInt},
		{BoolLit(false), LitBool},
		{StrLit(""), LitStr},
		{EventLit("e"), LitEvent},
		{UnitLit(UnitNS), LitUnit},
		{TimeLit(5, UnitNS), LitTime},
		{ChannelLit("c"), LitChannel},
		{PortLit("p"), LitPort},
		{NullLit(), LitNull},
		{UnknownLit(), LitUnknown},
		{OneOfLit(IntLit(1), IntLit(2)), LitOneOf},
		{Literal{}, LitInvalid},
		{Literal{Event: "e", Null: true}, LitInvalid},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.lit.Kind())
		})
	}
}

func TestParseTimeUnit(t *testing.T) {
	for _, s := range []string{"ns", "SC_NS"} {
		u, err := ParseTimeUnit(s)
		require.NoError(t, err)
		assert.Equal(t, UnitNS, u)
	}
	u, err := ParseTimeUnit("s")
	require.NoError(t, err)
	assert.Equal(t, UnitSec, u)

	_, err = ParseTimeUnit("minutes")
	assert.Error(t, err)
}

func TestTimeUnitFemtos(t *testing.T) {
	prev := int64(0)
	for _, u := range Units {
		f, ok := u.Femtos()
		require.True(t, ok)
		assert.Greater(t, f, prev)
		prev = f
	}
	assert.False(t, TimeUnit("min").Valid())
}

func TestModelLookups(t *testing.T) {
	m := &Model{
		Events:    []string{"clk"},
		Globals:   map[string]Literal{"count": IntLit(0)},
		Channels:  []Channel{{Name: "sig", Update: "sig_update"}},
		Ports:     []Port{{Name: "out", Channel: "sig"}},
		Processes: []Process{{Name: "a", Function: "fa"}, {Name: "b", Function: "fb"}},
		Functions: map[string]Function{"fa": {}, "fb": {}},
	}

	_, ok := m.Process("b")
	assert.True(t, ok)
	_, ok = m.Process("z")
	assert.False(t, ok)

	c, ok := m.Channel("sig")
	require.True(t, ok)
	assert.Equal(t, "sig_update", c.Update)

	p, ok := m.Port("out")
	require.True(t, ok)
	assert.Equal(t, "sig", p.Channel)

	_, ok = m.Function("fa")
	assert.True(t, ok)

	assert.True(t, m.IsGlobal("count"))
	assert.False(t, m.IsGlobal("clk"))
	assert.True(t, m.IsEvent("clk"))
	assert.Equal(t, []string{"a", "b"}, m.ProcessNames())
}

func TestInstrJSONSnakeCase(t *testing.T) {
	in := Instr{Op: OpConst, Lit: &Literal{Time: &TimeLiteral{Amount: 3, Unit: UnitPS}}}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"const","lit":{"time":{"amount":3,"unit":"ps"}}}`, string(data))

	var back Instr
	require.NoError(t, json.Unmarshal([]byte(`{"op":"call","function":"f","argc":2}`), &back))
	assert.Equal(t, Instr{Op: OpCall, Function: "f", Argc: 2}, back)
}

func TestInstrStackEffect(t *testing.T) {
	tests := []struct {
		in     Instr
		pops   int
		pushes int
	}{
		{Instr{Op: OpConst}, 0, 1},
		{Instr{Op: OpBinary, Operator: "+"}, 2, 1},
		{Instr{Op: OpDup}, 1, 2},
		{Instr{Op: OpCall, Argc: 3}, 3, 1},
		{Instr{Op: OpReturn, Value: true}, 1, 0},
		{Instr{Op: OpWait, Argc: 2}, 2, 0},
		{Instr{Op: OpStop}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			pops, pushes := tt.in.StackEffect()
			assert.Equal(t, tt.pops, pops)
			assert.Equal(t, tt.pushes, pushes)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		amount int64
		unit   TimeUnit
		want   int64
		wantU  TimeUnit
	}{
		{1000, UnitPS, 1, UnitNS},
		{1500, UnitPS, 1500, UnitPS},
		{3, UnitNS, 3, UnitNS},
		{2000, UnitMS, 2, UnitSec},
		{0, UnitUS, 0, UnitFS},
	}
	for _, tt := range tests {
		a, u := Normalize(tt.amount, tt.unit)
		assert.Equal(t, tt.want, a)
		assert.Equal(t, tt.wantU, u)
	}
	assert.Equal(t, int64(3_000_000), ToFemtos(3, UnitNS))
}

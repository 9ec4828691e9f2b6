package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/absim/internal/ir"
)

func TestLoad_PingPong(t *testing.T) {
	res, errs := Load(filepath.Join("testdata", "pingpong.cue"), LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, res)

	m := res.Model
	assert.Equal(t, "pingpong", m.Name)
	assert.Equal(t, []string{"ping", "pong"}, m.Events)
	assert.Equal(t, []string{"pinger", "ponger"}, m.ProcessNames())
	assert.Equal(t, ir.IntLit(0), m.Globals["count"])
	assert.Equal(t, ir.StopAfterDelta, m.Config.StopMode)
	assert.Equal(t, []string{"ping", "pong"}, m.Config.ConsideredEvents)

	ponger, ok := m.Process("ponger")
	require.True(t, ok)
	assert.True(t, ponger.DontInitialize)
	require.NotNil(t, ponger.Receiver)
	assert.Equal(t, ir.PortLit("out"), *ponger.Receiver)

	body := m.Functions["ping_body"].Body
	require.Len(t, body, 7)
	assert.Equal(t, ir.Instr{Op: ir.OpBinary, Operator: "+"}, body[2])
	assert.Equal(t, ir.TimeLit(2, ir.UnitNS), *body[5].Lit)
	assert.Equal(t, ir.OpNotify, body[6].Op)
	assert.Equal(t, 2, body[6].Argc)

	oneOf := m.Functions["sig_update"].Body[0].Lit
	require.NotNil(t, oneOf)
	assert.Equal(t, ir.LitOneOf, oneOf.Kind())
	assert.Len(t, oneOf.OneOf, 2)

	hash, err := ir.ModelHash(m)
	require.NoError(t, err)
	assert.Equal(t, hash, res.Hash)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{filepath.Join("testdata", "pingpong.cue")}, res.Files)
}

func TestLoad_ValidationErrorsHavePositions(t *testing.T) {
	res, errs := Load(filepath.Join("testdata", "invalid.cue"), LoadModeCollectAll)
	require.NotNil(t, res)
	require.Len(t, errs, 3)

	codes := make([]string, len(errs))
	for i, err := range errs {
		var le *LoadError
		require.True(t, errors.As(err, &le))
		codes[i] = le.Code
		assert.True(t, le.Pos.IsValid(), "error %q has no position", le.Message)
		assert.Contains(t, le.Pos.Filename(), "invalid.cue")
	}
	assert.Equal(t, []string{ErrUndefinedFunction, ErrUndefinedEvent, ErrTargetOutOfRange}, codes)

	var le *LoadError
	require.True(t, errors.As(errs[2], &le))
	assert.Equal(t, 9, le.Pos.Line())
}

func TestLoad_FailFast(t *testing.T) {
	_, errs := Load(filepath.Join("testdata", "invalid.cue"), LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoad_SchemaRejectsUnknownOp(t *testing.T) {
	res, errs := Load(filepath.Join("testdata", "typo.cue"), LoadModeCollectAll)
	assert.Nil(t, res)
	require.Len(t, errs, 1)

	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, ErrCodeBuildFailed, le.Code)
	assert.True(t, le.Pos.IsValid())
	assert.Contains(t, le.Pos.Filename(), "typo.cue")
}

func TestLoad_PathErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		code string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.cue") }, ErrCodeNotFound},
		{"empty dir", func(t *testing.T) string { return t.TempDir() }, ErrCodeNoFiles},
		{"not cue", func(t *testing.T) string {
			p := filepath.Join(t.TempDir(), "model.txt")
			require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
			return p
		}, ErrCodeNoFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, errs := Load(tt.path(t), LoadModeCollectAll)
			assert.Nil(t, res)
			require.Len(t, errs, 1)
			var le *LoadError
			require.True(t, errors.As(errs[0], &le))
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadSource(t *testing.T) {
	src := `
model: {
	name: "tiny"
	processes: [{name: "p", function: "main"}]
	functions: main: body: [{op: "stop"}]
}
`
	res, errs := LoadSource("tiny.cue", src, LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, "tiny", res.Model.Name)
	assert.Nil(t, res.Model.Config.ConsideredEvents)
	assert.Equal(t, []ir.Instr{{Op: ir.OpStop}}, res.Model.Functions["main"].Body)
}

func TestLoadSource_Errors(t *testing.T) {
	t.Run("syntax", func(t *testing.T) {
		_, errs := LoadSource("bad.cue", "model: {", LoadModeCollectAll)
		require.Len(t, errs, 1)
		var le *LoadError
		require.True(t, errors.As(errs[0], &le))
		assert.Equal(t, ErrCodeBuildFailed, le.Code)
	})

	t.Run("no model", func(t *testing.T) {
		_, errs := LoadSource("other.cue", "other: 1", LoadModeCollectAll)
		require.Len(t, errs, 1)
		var le *LoadError
		require.True(t, errors.As(errs[0], &le))
		assert.Equal(t, ErrCodeNoModel, le.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		src := `model: {name: "x", processes: [], functions: {}, sensitivty: []}`
		_, errs := LoadSource("typo.cue", src, LoadModeCollectAll)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "sensitivty")
	})

	t.Run("recursion warns", func(t *testing.T) {
		src := `
model: {
	name: "rec"
	processes: [{name: "p", function: "f"}]
	functions: {
		f: body: [{op: "call", function: "f"}, {op: "pop"}]
	}
}
`
		res, errs := LoadSource("rec.cue", src, LoadModeCollectAll)
		require.Empty(t, errs)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, []string{"f", "f"}, res.Warnings[0].Path)
	})
}

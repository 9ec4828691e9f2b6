package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/absim/internal/model"
)

func TestValidateValidModel(t *testing.T) {
	out, err := execute(t, NewValidateCommand, "text", tickerModel)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Model ticker valid")
}

func TestValidateValidModelJSON(t *testing.T) {
	var result ValidationResult
	out, err := execute(t, NewValidateCommand, "json", pingpongModel)
	require.NoError(t, err)

	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, "pingpong", result.Model)
	assert.Len(t, result.Hash, 64)
	assert.Empty(t, result.Errors)
}

func TestValidateInvalidModel(t *testing.T) {
	out, err := execute(t, NewValidateCommand, "text", invalidModel)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "3 error(s)")

	assert.Contains(t, out, "["+model.ErrUndefinedFunction+"]")
	assert.Contains(t, out, "invalid.cue:9:")
	assert.NotContains(t, out, "✓")
}

func TestValidateInvalidModelJSON(t *testing.T) {
	var result ValidationResult
	out, err := execute(t, NewValidateCommand, "json", invalidModel)
	require.Error(t, err)

	decode(t, out, &result)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, model.ErrTargetOutOfRange, result.Errors[2].Code)
	assert.Equal(t, 9, result.Errors[2].Line)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, err := execute(t, NewValidateCommand, "text", "/nonexistent/model.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, model.ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateSchemaError(t *testing.T) {
	path := writeModel(t, `model: {name: "x", processes: [], functions: {}, colour: "red"}`)
	out, err := execute(t, NewValidateCommand, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, model.ErrCodeBuildFailed, resp.Error.Code)
}

func TestValidateRecursionWarning(t *testing.T) {
	path := writeModel(t, `model: {
	name: "rec"
	processes: [{name: "p", function: "main"}]
	functions: {
		main: body: [{op: "call", function: "f", argc: 0}, {op: "pop"}]
		f: body: [{op: "call", function: "f", argc: 0}, {op: "return"}]
	}
}
`)
	var result ValidationResult
	out, err := execute(t, NewValidateCommand, "json", path)
	require.NoError(t, err)
	decode(t, out, &result)
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}

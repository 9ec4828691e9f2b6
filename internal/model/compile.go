package model

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/absim/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

const schemaFile = "absim-schema.cue"

// CompileError is a decode failure with the CUE position that caused it.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	path []string
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile decodes the value of a model struct into an ir.Model.
//
// The value is unified with a closed schema first, so misspelled fields and
// unknown opcodes are reported with their position instead of being dropped.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	m, err := Compile(v.LookupPath(cue.ParsePath("model")))
func Compile(v cue.Value) (*ir.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "model", Message: "model is required"}
	}

	schema := v.Context().CompileString(schemaCUE, cue.Filename(schemaFile))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile model schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Model")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var m ir.Model
	if err := unified.Decode(&m); err != nil {
		return nil, formatCUEError(err)
	}
	return &m, nil
}

// formatCUEError extracts position info from CUE errors. Positions inside
// the embedded schema are skipped in favor of the model file's own.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	var pos token.Pos
	for _, p := range errors.Positions(first) {
		if p.Filename() != schemaFile {
			pos = p
			break
		}
	}
	path := trimRoot(first.Path())
	field := strings.Join(path, ".")
	if field == "" {
		field = "cue"
	}
	return &CompileError{
		Field:   field,
		Message: first.Error(),
		Pos:     pos,
		path:    path,
	}
}

// trimRoot drops the schema definition or the model label that error paths
// may start with.
func trimRoot(path []string) []string {
	if len(path) > 0 && (path[0] == "#Model" || path[0] == "model") {
		return path[1:]
	}
	return path
}

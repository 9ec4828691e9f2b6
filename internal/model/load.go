package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/absim/internal/ir"
)

// LoadMode controls how errors are handled during model loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all validation errors before returning.
	LoadModeCollectAll
)

// Error code constants for loading. Validation codes are E2xx.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoModel     = "E007" // No top-level model field
)

// Result contains a loaded model.
type Result struct {
	Model    *ir.Model
	Hash     string
	CUEValue cue.Value // The model struct, for position lookups
	Files    []string
	Warnings []CycleWarning
}

// LoadError represents an error that occurred during model loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads a model from a .cue file or from the CUE package in a directory.
// The model is the value of the top-level "model" field.
//
// If mode is LoadModeFailFast only the first validation error is returned.
// A non-nil Result is returned whenever the model decoded, even if it has
// validation errors.
func Load(path string, mode LoadMode) (*Result, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model path: %v", err)}}
	}

	ctx := cuecontext.New()
	var (
		value cue.Value
		files []string
	)
	if info.IsDir() {
		value, files, err = loadDir(ctx, path)
	} else {
		value, err = loadFile(ctx, path)
		files = []string{path}
	}
	if err != nil {
		return nil, []error{err}
	}

	return compileAndValidate(value, files, mode)
}

// LoadSource loads a model from CUE source text. The filename only labels
// positions.
func LoadSource(filename, src string, mode LoadMode) (*Result, []error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{buildError(err)}
	}
	return compileAndValidate(value, []string{filename}, mode)
}

func loadDir(ctx *cue.Context, dir string) (cue.Value, []string, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return cue.Value{}, nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, nil, buildError(err)
	}
	return value, files, nil
}

func loadFile(ctx *cue.Context, path string) (cue.Value, error) {
	if filepath.Ext(path) != ".cue" {
		return cue.Value{}, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a .cue file: %s", path)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cue.Value{}, buildError(err)
	}
	return value, nil
}

func buildError(err error) *LoadError {
	le := &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	var ce *CompileError
	if errors.As(formatCUEError(err), &ce) {
		le.Pos = ce.Pos
	}
	return le
}

func compileAndValidate(root cue.Value, files []string, mode LoadMode) (*Result, []error) {
	modelVal := root.LookupPath(cue.ParsePath("model"))
	if !modelVal.Exists() {
		return nil, []error{&LoadError{Code: ErrCodeNoModel, Message: "no top-level model field", Pos: root.Pos()}}
	}

	m, err := Compile(modelVal)
	if err != nil {
		le := convertCompileError(err)
		var ce *CompileError
		if !le.Pos.IsValid() && errors.As(err, &ce) {
			le.Pos = closestPos(modelVal, selectorsOf(ce.path))
		}
		return nil, []error{le}
	}

	hash, err := ir.ModelHash(m)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: err.Error()}}
	}

	result := &Result{
		Model:    m,
		Hash:     hash,
		CUEValue: modelVal,
		Files:    files,
		Warnings: AnalyzeCycles(m),
	}

	var errs []error
	for _, ve := range Validate(m) {
		errs = append(errs, &LoadError{
			Code:    ve.Code,
			Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message),
			Pos:     PositionOf(modelVal, ve),
		})
		if mode == LoadModeFailFast {
			break
		}
	}
	return result, errs
}

// PositionOf returns the source position of the value a validation error
// points at, or of its closest existing ancestor.
func PositionOf(modelVal cue.Value, ve ValidationError) token.Pos {
	sels := make([]cue.Selector, 0, len(ve.path))
	for _, p := range ve.path {
		switch x := p.(type) {
		case string:
			sels = append(sels, cue.Str(x))
		case int:
			sels = append(sels, cue.Index(x))
		}
	}
	return closestPos(modelVal, sels)
}

// selectorsOf turns an error path into selectors; all-digit labels are list
// indices.
func selectorsOf(path []string) []cue.Selector {
	sels := make([]cue.Selector, len(path))
	for i, p := range path {
		if n, err := strconv.Atoi(p); err == nil {
			sels[i] = cue.Index(n)
		} else {
			sels[i] = cue.Str(p)
		}
	}
	return sels
}

func closestPos(modelVal cue.Value, sels []cue.Selector) token.Pos {
	for n := len(sels); n >= 0; n-- {
		v := modelVal.LookupPath(cue.MakePath(sels[:n]...))
		if v.Exists() && v.Pos().IsValid() {
			return v.Pos()
		}
	}
	return token.NoPos
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: fmt.Sprintf("%s: %s", ce.Field, ce.Message),
			Pos:     ce.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

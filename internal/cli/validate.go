package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/absim/internal/model"
)

// ValidationIssue is one problem found in a model, with its source position
// when known.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Model    string            `json:"model,omitempty"`
	Hash     string            `json:"hash,omitempty"`
	Files    []string          `json:"files,omitempty"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model>",
		Short: "Validate a model without exploring it",
		Long: `Validate a CUE model file or directory.

Checks the model against the schema, then checks names, references, jump
targets and stack use. Recursive call chains are reported as warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	res, errs := model.Load(path, model.LoadModeCollectAll)
	if res == nil {
		le := firstLoadError(errs)
		_ = formatter.Error(le.Code, le.Message, issueOf(le))
		return WrapExitError(loadExitCode(le), "failed to load model", le)
	}

	formatter.VerboseLog("Loaded %d CUE file(s) from %s", len(res.Files), path)

	result := ValidationResult{
		Valid: len(errs) == 0,
		Model: res.Model.Name,
		Hash:  res.Hash,
		Files: res.Files,
	}
	for _, err := range errs {
		result.Errors = append(result.Errors, issueOf(asLoadError(err)))
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, w.Message)
	}

	if err := formatter.Success(result, func(w io.Writer) { writeValidation(w, result) }); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("model has %d error(s)", len(result.Errors)))
	}
	return nil
}

func writeValidation(w io.Writer, r ValidationResult) {
	for _, e := range r.Errors {
		if e.Line > 0 {
			fmt.Fprintf(w, "✗ %s:%d:%d [%s] %s\n", e.File, e.Line, e.Column, e.Code, e.Message)
		} else {
			fmt.Fprintf(w, "✗ [%s] %s\n", e.Code, e.Message)
		}
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", msg)
	}
	if r.Valid {
		fmt.Fprintf(w, "✓ Model %s valid\n", r.Model)
	} else {
		fmt.Fprintf(w, "\n%d error(s)\n", len(r.Errors))
	}
}

func asLoadError(err error) *model.LoadError {
	var le *model.LoadError
	if errors.As(err, &le) {
		return le
	}
	return &model.LoadError{Code: model.ErrCodeGeneric, Message: err.Error()}
}

func firstLoadError(errs []error) *model.LoadError {
	if len(errs) == 0 {
		return &model.LoadError{Code: model.ErrCodeGeneric, Message: "model did not load"}
	}
	return asLoadError(errs[0])
}

func issueOf(le *model.LoadError) ValidationIssue {
	issue := ValidationIssue{Code: le.Code, Message: le.Message}
	if le.Pos.IsValid() {
		issue.File = le.Pos.Filename()
		issue.Line = le.Pos.Line()
		issue.Column = le.Pos.Column()
	}
	return issue
}

// loadExitCode separates bad paths from bad models.
func loadExitCode(le *model.LoadError) int {
	switch le.Code {
	case model.ErrCodeNotFound, model.ErrCodeScanError, model.ErrCodeNoFiles:
		return ExitCommandError
	}
	return ExitFailure
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/staffing-engine/generic"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (unknown id, store error)
	ExitCommandError = 2 // Command error (bad flags, invalid input, bad config)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// failed wraps an operation error. Rejected input is a command error,
// everything else a failure.
func failed(message string, err error) error {
	if generic.IsClientError(err) && !generic.IsNotFound(err) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// =============================================================================
// FORMATTER
// =============================================================================

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string `json:"status"` // "ok"
	Data   any    `json:"data"`   // success payload
}

// Table is tab-separated text output.
type Table struct {
	Headers []string
	Rows    [][]string
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// Message prints msg in text mode and data in JSON mode.
func (f *OutputFormatter) Message(msg string, data any) error {
	if f.Format == "json" {
		return f.json(data)
	}
	_, err := fmt.Fprintln(f.Writer, msg)
	return err
}

// Table prints t in text mode. In JSON mode each row becomes an object
// keyed by header.
func (f *OutputFormatter) Table(t Table) error {
	if f.Format == "json" {
		return f.json(t.objects())
	}
	if len(t.Rows) == 0 {
		_, err := fmt.Fprintln(f.Writer, "(no results)")
		return err
	}
	var b strings.Builder
	b.WriteString(strings.Join(t.Headers, "\t"))
	b.WriteByte('\n')
	for _, row := range t.Rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(f.Writer, b.String())
	return err
}

func (t Table) objects() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		obj := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				obj[h] = row[j]
			}
		}
		out[i] = obj
	}
	return out
}

func (f *OutputFormatter) json(data any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResponse{Status: "ok", Data: data})
}

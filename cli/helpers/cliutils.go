package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/pretty"
	"github.com/minutemate/minutemate/pkg/logger"
)

// CliError represents a CLI-specific error with enhanced context
type CliError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e *CliError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCliError creates a new CLI error with context
func NewCliError(code, message string, details ...string) *CliError {
	err := &CliError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]any),
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// WithContext adds context to the error
func (e *CliError) WithContext(key string, value any) *CliError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

// FormatError renders err as a JSON document or a styled line.
func FormatError(err error, asJSON bool) string {
	if err == nil {
		return ""
	}
	message, details, code := err.Error(), "", ""
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		message, details, code = cliErr.Message, cliErr.Details, cliErr.Code
	}
	if asJSON {
		body, mErr := json.MarshalIndent(map[string]any{
			"error":   message,
			"code":    code,
			"details": details,
		}, "", "  ")
		if mErr != nil {
			return `{"error": "JSON marshaling failed", "details": ""}`
		}
		return string(body)
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	out := style.Render("Error: " + message)
	if details != "" {
		detailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
		out += "\n" + detailStyle.Render("Details: "+details)
	}
	return out
}

// OutputError writes err to stderr in the requested format.
func OutputError(err error, asJSON bool) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, FormatError(err, asJSON))
}

type reportedError struct{ err error }

func (r *reportedError) Error() string { return r.err.Error() }
func (r *reportedError) Unwrap() error { return r.err }

// Reported marks err as already written to the user.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// IsReported reports whether err was already written by OutputError.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// ReadInput reads a file, or stdin when source is "-".
func ReadInput(ctx context.Context, stdin io.Reader, source string) ([]byte, error) {
	log := logger.FromContext(ctx)
	switch source {
	case "":
		return nil, NewCliError("INVALID_PATH", "File path cannot be empty")
	case "-":
		log.Debug("reading from stdin")
		return io.ReadAll(stdin)
	}
	log.Debug("reading from file", "file", source)
	data, err := os.ReadFile(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewCliError("FILE_NOT_FOUND", fmt.Sprintf("File not found: %s", source))
		}
		return nil, NewCliError("FILE_READ_ERROR", fmt.Sprintf("Failed to read file: %s", source), err.Error())
	}
	return data, nil
}

// WriteJSON writes v as indented JSON followed by a newline, colored when w
// is a terminal.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	out := pretty.Pretty(data)
	if IsTerminal(w) {
		out = pretty.Color(out, nil)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

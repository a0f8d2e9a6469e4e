package helpers

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Output formats accepted by listing commands.
const (
	FormatJSON  = "json"
	FormatTable = "table"
)

// isRunningInCI checks if we're running in a CI/CD environment
func isRunningInCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE", "JENKINS_URL", "TF_BUILD"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectFormat returns explicit when set. Otherwise it picks a table for an
// interactive terminal outside CI and JSON for pipes and files.
func DetectFormat(explicit string, w io.Writer) (string, error) {
	switch explicit {
	case FormatJSON, FormatTable:
		return explicit, nil
	case "":
	default:
		return "", NewCliError("INVALID_FORMAT", fmt.Sprintf("unsupported format: %s", explicit))
	}
	if IsTerminal(w) && !isRunningInCI() {
		return FormatTable, nil
	}
	return FormatJSON, nil
}

package version

import "fmt"

// Build variables set via ldflags:
// -X 'github.com/minutemate/minutemate/pkg/version.Version=v1.0.0'
// -X 'github.com/minutemate/minutemate/pkg/version.CommitHash=abc123'
// -X 'github.com/minutemate/minutemate/pkg/version.BuildDate=2024-01-01T00:00:00Z'
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Info returns build information in a structured format
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
}

func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
	}
}

// String renders the info the way `minutemate --version` prints it.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildDate)
}

// Package vars holds build-time variables populated via the linker (ldflags).
package vars

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// License of the project
const License = "AGPL-3.0"

var (
	// Name of the project
	Name = "mcstatus"

	// Version of application (git tag), e.g. v1.2.3
	Version = "dev"

	// Commit is the full or short git SHA
	Commit = "unknown"

	// URL to repository (https)
	URL = "https://github.com/woozymasta/mcstatus"

	// set with -X as strings, parsed by Current
	_revision  string
	_buildTime string
)

// Build is the build metadata served by /api/version.
type Build struct {
	BuildTime time.Time `json:"build_time"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	URL       string    `json:"url"`
	License   string    `json:"license"`
	Revision  int       `json:"revision,omitempty"`
}

// Current returns the metadata of the running binary.
func Current() Build {
	b := Build{
		BuildTime: time.Unix(0, 0).UTC(),
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		URL:       URL,
		License:   License,
	}

	if n, err := strconv.Atoi(_revision); err == nil {
		b.Revision = n
	}
	if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
		b.BuildTime = t.UTC()
	}

	return b
}

// ShortCommit returns the first 7 characters of the commit.
func (b Build) ShortCommit() string {
	if len(b.Commit) > 7 {
		return b.Commit[:7]
	}

	return b.Commit
}

// UserAgent is sent with outgoing HTTP requests, e.g. "mcstatus/v1.2.3 (da15c17)".
func (b Build) UserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", b.Name, b.Version, b.ShortCommit())
}

// Write prints the metadata as aligned "key: value" lines.
func (b Build) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "name:     %s\nurl:      %s\nversion:  %s\ncommit:   %s\nrevision: %d\nbuilt:    %s\nlicense:  %s\n",
		b.Name, b.URL, b.Version, b.Commit, b.Revision, b.BuildTime.Format(time.RFC3339), b.License)
	return err
}

// Print writes the build information of the running binary to stdout.
func Print() {
	_ = Current().Write(os.Stdout)
}

// UserAgent returns the User-Agent of the running binary.
func UserAgent() string {
	return Current().UserAgent()
}

// Package cli implements the provgraph command-line interface.
//
// The commands load a package registry, read pipeline files and report
// their signatures, check them against the registry, query an artifact
// cache, render diagrams and serve the HTTP API. The CLI is built using
// cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - check: Validate a pipeline against the registry
//   - signatures: Print module, connection and sub-pipeline signatures
//   - plan: Show which modules have cached results
//   - render: Draw a pipeline as a node-link diagram
//   - serve: Run the HTTP API, optionally reloading the registry on change
//
// # Configuration
//
// Settings are read from $XDG_CONFIG_HOME/provgraph/config.toml and can be
// overridden with flags. All commands support --verbose (-v) for debug-level
// logging.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
// The returned progress should call done when the operation completes.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// The duration is rounded to the nearest millisecond.
// Example output: "Loaded 3 packages (12ms)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

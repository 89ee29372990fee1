// Package logger builds the slog loggers used across the module, tagging
// every record with the hostname and shortening source paths so logs from
// several Home Assistant hosts stay tellable apart.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

var hostname string

func init() {
	var err error
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
}

// New creates a logger writing to w with hostname tagging and
// basename:line source locations.
func New(w io.Writer) *slog.Logger {
	return NewAtLevel(w, slog.LevelInfo)
}

// NewAtLevel is New with an explicit minimum level; the CLI uses it to
// switch on debug output.
func NewAtLevel(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			// Shorten source file paths to just basename:line.
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
					source.Function = ""
				}
			}
			return a
		},
	}

	return slog.New(slog.NewTextHandler(w, opts)).With("instance", hostname)
}

// Hostname returns the cached hostname added to every record.
func Hostname() string {
	return hostname
}

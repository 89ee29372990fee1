package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTagsInstance(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Info("test message", "alpha", "first")

	output := buf.String()
	if !strings.Contains(output, "level=INFO") {
		t.Error("INFO level not found in output")
	}
	if !strings.Contains(output, `msg="test message"`) {
		t.Error("message not found in output")
	}
	if !strings.Contains(output, "alpha=first") {
		t.Error("attribute not found in output")
	}
	if !strings.Contains(output, "instance="+Hostname()) {
		t.Error("instance attribute not found in output")
	}
}

func TestNewShortensSourcePaths(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Info("where am I")

	output := buf.String()
	if !strings.Contains(output, "source=logger_test.go:") {
		t.Errorf("expected basename source location, got: %s", output)
	}
	if strings.Contains(output, "source=/") {
		t.Errorf("source path was not shortened: %s", output)
	}
}

func TestNewAtLevelFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Error("debug record must be filtered at the default level")
	}

	log = NewAtLevel(&buf, slog.LevelDebug)
	log.Debug("visible")
	if !strings.Contains(buf.String(), `msg=visible`) {
		t.Error("debug record not emitted at debug level")
	}
}

func TestHostnameIsStable(t *testing.T) {
	if Hostname() == "" {
		t.Error("hostname must not be empty")
	}
	if Hostname() != Hostname() {
		t.Error("hostname must be cached")
	}
}

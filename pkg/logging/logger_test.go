package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:       LevelInfo,
		ServiceName: "test-service",
		JSONFormat:  true,
		Output:      &buf,
	})

	log.Info("hello", F("count", 3), F("flag", true))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	if entry["message"] != "hello" {
		t.Errorf("message = %v, want %q", entry["message"], "hello")
	}
	if entry["service_name"] != "test-service" {
		t.Errorf("service_name = %v, want %q", entry["service_name"], "test-service")
	}
	if entry["count"] != float64(3) {
		t.Errorf("count = %v, want 3", entry["count"])
	}
	if entry["flag"] != true {
		t.Errorf("flag = %v, want true", entry["flag"])
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:       LevelWarn,
		ServiceName: "test",
		JSONFormat:  true,
		Output:      &buf,
	})

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("levels below warn were not filtered: %s", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("warn message missing from output: %s", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:       LevelInfo,
		ServiceName: "test",
		JSONFormat:  true,
		Output:      &buf,
	})

	child := log.With(F("meeting_id", "abc-123"), F("took", 250*time.Millisecond))
	child.Info("classified")

	out := buf.String()
	if !strings.Contains(out, "abc-123") {
		t.Errorf("attached field missing from output: %s", out)
	}
}

func TestErrField(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:      LevelInfo,
		JSONFormat: true,
		Output:     &buf,
	})

	log.Error("failed", Err(errors.New("boom")))

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("error value missing from output: %s", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()

	// Must not panic and must return a usable child logger.
	log.Debug("a")
	log.Info("b")
	log.Warn("c")
	log.Error("d", Err(errors.New("ignored")))
	if log.With(F("k", "v")) == nil {
		t.Error("With() returned nil")
	}
}

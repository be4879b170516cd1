package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "json")
	logger.WithField("quiz_id", "onboarding").Debug("quiz auto-assigned")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "quiz auto-assigned" || entry["quiz_id"] != "onboarding" || entry["level"] != "debug" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "chatty", "text")
	if logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %v", logger.GetLevel())
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

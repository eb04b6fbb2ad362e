package zerolog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

func TestLogger_WritesFields(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	logger.Warn("missing linkage reference",
		tiergate.Field{Key: "event_type", Value: "checkout.session.completed"},
		tiergate.Field{Key: "session_id", Value: "cs_123"},
	)

	line := output.String()
	if !strings.Contains(line, "missing linkage reference") {
		t.Errorf("Expected message in output, got %s", line)
	}
	if !strings.Contains(line, "cs_123") {
		t.Errorf("Expected field value in output, got %s", line)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output).Level(zerolog.WarnLevel))

	logger.Debug("debug message")
	logger.Info("info message")

	if output.Len() != 0 {
		t.Error("Expected debug and info to be filtered out")
	}

	logger.Warn("warn message")
	logger.Error("error message")

	if output.Len() == 0 {
		t.Error("Expected warn and error to be logged")
	}
}

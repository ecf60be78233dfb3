package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterProductionEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "production", "api")
	logger.Info().Str("product_id", "p1").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if line["env"] != "production" || line["service"] != "api" {
		t.Fatalf("missing context fields: %v", line)
	}
	if line["product_id"] != "p1" || line["message"] != "hello" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNewWithWriterDevelopmentIsConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "development", "worker")
	logger.Debug().Msg("visible")

	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("debug line should be written outside production, got %q", buf.String())
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("console writer should not emit json: %q", buf.String())
	}
}

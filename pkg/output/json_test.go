package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestNewJSONFormatter(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{})
	if f == nil {
		t.Fatal("NewJSONFormatter() returned nil")
	}
	if f.Name() != "json" {
		t.Errorf("Name() = %q, want %q", f.Name(), "json")
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{})
	report := createTestReport(t)

	var buf bytes.Buffer
	if err := f.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	for _, key := range []string{"summary", "security", "errors", "parse_failures", "metadata"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}

	summary := decoded["summary"].(map[string]any)
	if summary["total_requests"] != float64(6) {
		t.Errorf("total_requests = %v, want 6", summary["total_requests"])
	}

	sec := decoded["security"].(map[string]any)
	incidents := sec["incidents"].([]any)
	first := incidents[0].(map[string]any)
	if first["kind"] != "brute_force" || first["count"] != float64(3) {
		t.Errorf("incidents[0] = %v", first)
	}
}

func TestJSONFormatter_Format_Quiet(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{Quiet: true})
	report := createTestReport(t)

	var buf bytes.Buffer
	if err := f.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	want := map[string]any{
		"total_requests":  float64(6),
		"unique_clients":  float64(3),
		"total_incidents": float64(3),
		"total_errors":    float64(5),
		"parse_failures":  float64(1),
		"state":           "completed",
		"run_id":          report.Metadata.RunID,
	}
	for key, value := range want {
		if decoded[key] != value {
			t.Errorf("%s = %v, want %v", key, decoded[key], value)
		}
	}
	if _, ok := decoded["security"]; ok {
		t.Error("quiet output should not include incident details")
	}
}

func TestJSONFormatter_Format_WriteError(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{})
	err := f.Format(context.Background(), createTestReport(t), failingWriter{})
	if !errors.Is(err, errWriteFailed) {
		t.Errorf("Format() error = %v, want %v", err, errWriteFailed)
	}
}

func TestJSONFormatter_Format_Empty(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{})

	var buf bytes.Buffer
	if err := f.Format(context.Background(), &Report{}, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Error("Output is not valid JSON")
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitWritesJSON(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	var buf bytes.Buffer
	Init("info", &buf)

	Debug("hidden")
	Error("visible", Err(errors.New("boom")), String("source", "local"), RequestID("abc"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "visible" {
		t.Errorf("msg = %v, want visible", line["msg"])
	}
	if line["error"] != "boom" {
		t.Errorf("error = %v, want boom", line["error"])
	}
	if line["request_id"] != "abc" {
		t.Errorf("request_id = %v, want abc", line["request_id"])
	}
}

func TestAttrHelpers(t *testing.T) {
	tests := []struct {
		attr slog.Attr
		key  string
		kind slog.Kind
	}{
		{Int("count", 3), "count", slog.KindInt64},
		{Int64("user_id", 42), "user_id", slog.KindInt64},
		{Float64("temperature", 0.8), "temperature", slog.KindFloat64},
		{Bool("safe_mode", true), "safe_mode", slog.KindBool},
		{Duration("elapsed", 0), "elapsed", slog.KindDuration},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("Key = %v, want %v", tt.attr.Key, tt.key)
			}
			if tt.attr.Value.Kind() != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.attr.Value.Kind(), tt.kind)
			}
		})
	}
}

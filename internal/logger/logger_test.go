package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

type logRecord struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Component string `json:"component"`
}

func swapLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	original := Logger
	Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() { Logger = original })
	return &buf
}

func TestLogger(t *testing.T) {
	buf := swapLogger(t)

	tests := []struct {
		name  string
		fn    func(msg string, args ...any)
		level string
		msg   string
	}{
		{name: "Info", fn: Info, level: "INFO", msg: "info message"},
		{name: "Error", fn: Error, level: "ERROR", msg: "error message"},
		{name: "Warn", fn: Warn, level: "WARN", msg: "warn message"},
		{name: "Debug", fn: Debug, level: "DEBUG", msg: "debug message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.fn(tt.msg)

			var rec logRecord
			if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
				t.Fatalf("failed to unmarshal log output: %v", err)
			}

			if rec.Msg != tt.msg {
				t.Errorf("expected msg %q, got %q", tt.msg, rec.Msg)
			}
			if rec.Level != tt.level {
				t.Errorf("expected level %q, got %q", tt.level, rec.Level)
			}
		})
	}
}

func TestWith(t *testing.T) {
	buf := swapLogger(t)

	With("gateway").Info("listening")

	var rec logRecord
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("failed to unmarshal log output: %v", err)
	}
	if rec.Component != "gateway" {
		t.Errorf("expected component gateway, got %q", rec.Component)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetup(t *testing.T) {
	original := Logger
	originalDefault := slog.Default()
	t.Cleanup(func() {
		Logger = original
		slog.SetDefault(originalDefault)
	})

	var buf bytes.Buffer
	Setup("warn", "json", &buf)

	Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	Warn("kept")
	if !strings.Contains(buf.String(), `"msg":"kept"`) {
		t.Errorf("expected JSON output with msg kept, got %q", buf.String())
	}

	buf.Reset()
	Setup("info", "text", &buf)
	Info("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

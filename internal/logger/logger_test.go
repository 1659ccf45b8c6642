package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_InitAndGet(t *testing.T) {
	buf := &bytes.Buffer{}
	config := Config{
		Level:  LevelInfo,
		Format: FormatText,
		Outputs: []OutputConfig{
			{Type: OutputStdout, Writer: buf},
		},
	}

	err := Init(config)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Shutdown()

	logger := Get()
	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("log output missing message: %s", output)
	}
}

func TestLogger_NullLogger(t *testing.T) {
	// 測試未初始化時的行為
	Shutdown() // 確保未初始化

	logger := Get()
	// 不應該 panic
	logger.Info("should not crash")
	logger.Debug("should not crash")
	logger.Warn("should not crash")
	logger.Error("should not crash")
}

func TestLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	config := Config{
		Level:  LevelInfo,
		Format: FormatText,
		Outputs: []OutputConfig{
			{Type: OutputStdout, Writer: buf},
		},
	}

	Init(config)
	defer Shutdown()

	childLogger := With("component", "record")
	childLogger.Info("message")

	output := buf.String()
	if !strings.Contains(output, "component=record") {
		t.Errorf("output missing context: %s", output)
	}
}

func TestLogger_Sync(t *testing.T) {
	buf := &bytes.Buffer{}
	config := Config{
		Level:  LevelInfo,
		Format: FormatText,
		Outputs: []OutputConfig{
			{Type: OutputStdout, Writer: buf},
		},
	}

	Init(config)
	defer Shutdown()

	Get().Info("test")
	err := Sync()
	if err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}

func TestLogger_Shutdown(t *testing.T) {
	buf := &bytes.Buffer{}
	config := Config{
		Level:  LevelInfo,
		Format: FormatText,
		Outputs: []OutputConfig{
			{Type: OutputStdout, Writer: buf},
		},
	}

	Init(config)
	Get().Info("before shutdown")

	err := Shutdown()
	if err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	// 再次呼叫應該不會 panic
	err = Shutdown()
	if err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestLogger_InitTwice(t *testing.T) {
	config := Config{Outputs: []OutputConfig{{Type: OutputStdout, Writer: &bytes.Buffer{}}}}
	if err := Init(config); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Shutdown()

	if err := Init(config); err == nil {
		t.Error("second Init() should fail")
	}
}

func TestLogger_SetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Init(Config{
		Level:   LevelInfo,
		Outputs: []OutputConfig{{Type: OutputStdout, Writer: buf}},
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Shutdown()

	Get().Debug("before")
	SetLevel(LevelDebug)
	Get().Debug("after")

	output := buf.String()
	if strings.Contains(output, "before") {
		t.Errorf("debug logged before SetLevel: %s", output)
	}
	if !strings.Contains(output, "after") {
		t.Errorf("debug missing after SetLevel: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
		valid bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{" warning ", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got := ValidLevel(tt.input); got != tt.valid {
				t.Errorf("ValidLevel(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JSON") != FormatJSON {
		t.Error("JSON should parse as FormatJSON")
	}
	if ParseFormat("text") != FormatText || ParseFormat("") != FormatText {
		t.Error("text and empty should parse as FormatText")
	}
	if FormatJSON.String() != "json" || LevelWarn.String() != "warn" {
		t.Error("unexpected String() output")
	}
}

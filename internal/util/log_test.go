package util

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureLogs(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetColors(false)
	SetLogLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLogLevel(LevelInfo)
	})
	return &buf
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected []string
		absent   []string
	}{
		{LevelDebug, []string{"[DEBUG] d", "[INFO]  i", "[WARN]  w", "[ERROR] e", "[OK]    s"}, nil},
		{LevelInfo, []string{"[INFO]  i", "[WARN]  w", "[ERROR] e", "[OK]    s"}, []string{"[DEBUG]"}},
		{LevelError, []string{"[ERROR] e"}, []string{"[INFO]", "[WARN]", "[OK]"}},
	}

	for _, tt := range tests {
		buf := captureLogs(t, tt.level)

		DebugLog("d")
		InfoLog("i")
		WarnLog("w")
		ErrorLog("e")
		SuccessLog("s")

		out := buf.String()
		for _, want := range tt.expected {
			if !strings.Contains(out, want) {
				t.Errorf("level %d: missing %q in:\n%s", tt.level, want, out)
			}
		}
		for _, unwanted := range tt.absent {
			if strings.Contains(out, unwanted) {
				t.Errorf("level %d: unexpected %q in:\n%s", tt.level, unwanted, out)
			}
		}
		if strings.Contains(out, "\033[") {
			t.Errorf("level %d: colors were not disabled", tt.level)
		}
	}
}

func TestVerboseQuiet(t *testing.T) {
	captureLogs(t, LevelInfo)

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose after SetVerbose(true)")
	}

	SetQuiet(true)
	if !IsQuiet() || IsVerbose() {
		t.Error("expected quiet to win over verbose")
	}
}

package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestGetReturnsSameLoggerForSameName(t *testing.T) {
	a := Get("area")
	b := Get("area")
	if a != b {
		t.Error("Get() should return the same *Logger for the same name")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	SetGlobalLevel(LevelWarn)
	defer SetGlobalLevel(LevelInfo)

	l := Get("testpkg-filter")
	l.Debugf("should not appear")
	l.Infof("should not appear either")
	l.Warnf("should appear: %d", 1)

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug/info lines leaked through at Warn level: %q", out)
	}
	if !strings.Contains(out, "should appear: 1") {
		t.Errorf("warn line missing from output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package logrus

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ochairo/binscope/internal/domain/interfaces"
)

var _ interfaces.Logger = (*Logger)(nil)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{Level: "debug", Format: "json"})

	l.Info("binary analysis finished",
		interfaces.F("scan_id", "abc"),
		interfaces.F("findings", 3),
		interfaces.F("error", errors.New("boom")),
	)

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "binary analysis finished" || record["level"] != "info" {
		t.Errorf("record = %v", record)
	}
	if record["scan_id"] != "abc" || record["findings"] != float64(3) || record["error"] != "boom" {
		t.Errorf("fields = %v", record)
	}
}

func TestLogger_Level(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(&buf, Options{Level: tt.level})

			l.Debug("debug line")
			if got := strings.Contains(buf.String(), "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			l.Info("info line")
			if got := strings.Contains(buf.String(), "info line"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{Format: "text"}).With(interfaces.F("scan_id", "s1"))

	l.Warn("skipping binary analysis")

	out := buf.String()
	if !strings.Contains(out, "scan_id=s1") || !strings.Contains(out, "level=warning") {
		t.Errorf("output = %q", out)
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binscope.log")
	l := New(Options{Output: path})

	l.Error("failed to run binary analysis")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "failed to run binary analysis") {
		t.Errorf("log file = %q", data)
	}
}

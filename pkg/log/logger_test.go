package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestTextOutputAndLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(InfoLevel), WithFormatter(&TextFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.Debug("hidden")
	l.With(Component("relay")).Info("relayed", Str("subject", "price"), Int("n", 2))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry should be filtered: %q", out)
	}
	for _, want := range []string{"INFO", "relayed", "component=relay", "n=2", "subject=price"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.Error("boom", Err(errors.New("disk full")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if m["msg"] != "boom" || m["level"] != "ERROR" || m["error"] != "disk full" {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestSetLevelSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(WithLevel(ErrorLevel), WithOutput(NewWriterOutput(&buf)))
	child := root.WithComponent("hub")
	child.Warn("nope")
	if buf.Len() != 0 {
		t.Fatalf("warn should be filtered at error level")
	}
	root.SetLevel(DebugLevel)
	child.Debug("yes")
	if !strings.Contains(buf.String(), "yes") {
		t.Fatalf("child should follow root level, got %q", buf.String())
	}
}

func TestApplyConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "json null", cfg: Config{Level: "debug", Format: "json", Output: "null"}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
		{name: "bad output", cfg: Config{Output: "syslog"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyConfig(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyConfig err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		level   string
		wantErr bool
	}{
		{name: "dev default level", mode: "dev"},
		{name: "production debug", mode: "production", level: "debug"},
		{name: "warn", mode: "", level: "warn"},
		{name: "bad level", mode: "dev", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.mode, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Error("New() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			if l.SugaredLogger == nil {
				t.Fatal("New() returned logger without core")
			}
		})
	}
}

func TestWith_AddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("table", "genre").Info("table committed", "rows", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["table"] != "genre" {
		t.Errorf("table field = %v, want genre", ctx["table"])
	}
	if ctx["rows"] != int64(3) {
		t.Errorf("rows field = %v (%T), want 3", ctx["rows"], ctx["rows"])
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := NewNop()
	if OrNop(l) != l {
		t.Error("OrNop(l) should return l")
	}
	OrNop(nil).Info("discarded")
}

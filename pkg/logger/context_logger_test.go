package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext_AddsRecognizedFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-7")
	ctx = context.WithValue(ctx, PeerAddrKey, "10.0.0.5:52000")

	cl.WithContext(ctx).Info("peer joined")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["request_id"]; got != "req-7" {
		t.Errorf("request_id = %v, want req-7", got)
	}
	if got := fields["peer_addr"]; got != "10.0.0.5:52000" {
		t.Errorf("peer_addr = %v, want 10.0.0.5:52000", got)
	}
	if _, ok := fields["session_id"]; ok {
		t.Error("session_id logged without being set")
	}
}

func TestWithContext_BareContextAddsNothing(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	cl.WithContext(context.Background()).Info("tick")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if n := len(entries[0].Context); n != 0 {
		t.Errorf("context fields = %d, want 0", n)
	}
}

func TestNew_LevelSelection(t *testing.T) {
	for _, tt := range []struct {
		level       string
		debug, info bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"chatty", false, true}, // unknown strings fall back to info
	} {
		lg := New(tt.level)
		if got := lg.Core().Enabled(zap.DebugLevel); got != tt.debug {
			t.Errorf("New(%q) debug enabled = %v, want %v", tt.level, got, tt.debug)
		}
		if got := lg.Core().Enabled(zap.InfoLevel); got != tt.info {
			t.Errorf("New(%q) info enabled = %v, want %v", tt.level, got, tt.info)
		}
	}
}

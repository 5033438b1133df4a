package distributed

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"playcast/internal/core/domain"
	"playcast/pkg/config"
)

func TestNewPresenceMirror_DisabledReturnsNoop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = false

	mirror := NewPresenceMirror(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	if _, ok := mirror.(*NoopMirror); !ok {
		t.Fatalf("expected noop mirror, got %T", mirror)
	}
}

func TestNewPresenceMirror_FallsBackWhenRedisDown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"

	mirror := NewPresenceMirror(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	if _, ok := mirror.(*NoopMirror); !ok {
		t.Fatalf("expected fallback to noop mirror, got %T", mirror)
	}
}

func TestNoopMirror_AcceptsEverything(t *testing.T) {
	mirror := NewNoopMirror()
	ctx := context.Background()

	peer := domain.PeerRecord{Address: "10.0.0.5:51000", SessionID: "s-1", ConnectedAt: time.Now()}
	if err := mirror.PeerJoined(ctx, peer); err != nil {
		t.Errorf("PeerJoined: %v", err)
	}
	if err := mirror.PeerLeft(ctx, peer.Address); err != nil {
		t.Errorf("PeerLeft: %v", err)
	}
	if err := mirror.Close(ctx); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMirrorOperation_RejectsBadValues(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		op   *mirrorOperation
	}{
		{"set wants bytes", &mirrorOperation{kind: "set", key: "k", value: 42}},
		{"sadd wants string", &mirrorOperation{kind: "sadd", key: "k", value: []byte("x")}},
		{"srem wants string", &mirrorOperation{kind: "srem", key: "k", value: 42}},
		{"publish wants bytes", &mirrorOperation{kind: "publish", key: "k", value: "x"}},
		{"unknown kind", &mirrorOperation{kind: "zadd", key: "k"}},
	}
	for _, tc := range cases {
		if err := tc.op.Execute(ctx); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestRedisMirror_KeyLayout(t *testing.T) {
	m := newRedisMirror(nil, nil, "host-1", "playcast:", time.Minute, zaptest.NewLogger(t).Sugar())
	defer m.batcher.Stop()

	if got := m.peerKey("10.0.0.5:51000"); got != "playcast:presence:host-1:10.0.0.5:51000" {
		t.Errorf("peerKey = %q", got)
	}
	if got := m.peerSetKey(); got != "playcast:instance:host-1:peers" {
		t.Errorf("peerSetKey = %q", got)
	}
	if got := m.eventsChannel(); got != "playcast:events" {
		t.Errorf("eventsChannel = %q", got)
	}
}

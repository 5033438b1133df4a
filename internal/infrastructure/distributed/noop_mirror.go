package distributed

import (
	"context"

	"playcast/internal/core/domain"
)

// NoopMirror discards presence updates. Used when Redis is disabled or
// unreachable.
type NoopMirror struct{}

func NewNoopMirror() *NoopMirror { return &NoopMirror{} }

func (*NoopMirror) PeerJoined(ctx context.Context, peer domain.PeerRecord) error { return nil }

func (*NoopMirror) PeerLeft(ctx context.Context, address string) error { return nil }

func (*NoopMirror) Close(ctx context.Context) error { return nil }

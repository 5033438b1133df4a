package ports

import (
	"context"

	"playcast/internal/core/domain"
)

// SessionService is the authoritative registry of signaling peers and
// the single source of presence truth for pipeline lifecycle.
type SessionService interface {
	Register(ctx context.Context, address string, queue *domain.FrameQueue) (*domain.PeerRecord, error)
	// Unregister removes the record only when queue matches the live
	// registration, so a replaced stale connection can't evict its
	// successor.
	Unregister(ctx context.Context, address string, queue *domain.FrameQueue) error
	Broadcast(ctx context.Context, from string, frame domain.Frame) int
	Kick(ctx context.Context, address string) error
	Snapshot(ctx context.Context) domain.StreamingSessionView
	AllowInput(remoteAddr string) bool
}

// InputSink consumes decoded input commands from the transport layer.
type InputSink interface {
	Dispatch(ctx context.Context, from string, cmd domain.InputCommand) error
}

// PipelineController owns the at-most-one media pipeline.
type PipelineController interface {
	EnsurePlaying(ctx context.Context, peerHost string)
	Stop(ctx context.Context)
	State() domain.PipelineState
}

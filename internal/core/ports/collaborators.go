package ports

import (
	"context"

	"playcast/internal/core/domain"
)

// PointerInput injects pointer events into the host desktop.
// Coordinates are absolute screen positions.
type PointerInput interface {
	MoveTo(ctx context.Context, x, y int) error
	LeftDown(ctx context.Context) error
	LeftUp(ctx context.Context) error
	LeftClick(ctx context.Context) error
	RightClick(ctx context.Context) error
	Scroll(ctx context.Context, horizontal, vertical int) error
}

// GamepadOutput receives full virtual controller snapshots.
type GamepadOutput interface {
	Push(ctx context.Context, state domain.GamepadState) error
	Close() error
}

// MediaEngine launches media pipelines from a textual description.
// Launch fails on an unparseable description; state failures surface
// from the returned pipeline.
type MediaEngine interface {
	Launch(ctx context.Context, description string) (MediaPipeline, error)
}

// MediaPipeline is one launched pipeline.
type MediaPipeline interface {
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
}

// PresenceMirror reflects peer joins and leaves into an external
// store for fleet visibility. Implementations must tolerate loss.
type PresenceMirror interface {
	PeerJoined(ctx context.Context, peer domain.PeerRecord) error
	PeerLeft(ctx context.Context, address string) error
	Close(ctx context.Context) error
}

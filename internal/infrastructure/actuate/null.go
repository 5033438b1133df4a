package actuate

import (
	"context"

	"go.uber.org/zap"

	"playcast/internal/core/domain"
)

// NullPointer swallows pointer commands. Used on headless hosts and
// whenever no injector is configured.
type NullPointer struct {
	logger *zap.SugaredLogger
}

func NewNullPointer(logger *zap.SugaredLogger) *NullPointer {
	return &NullPointer{logger: logger}
}

func (p *NullPointer) MoveTo(ctx context.Context, x, y int) error {
	p.logger.Debugw("null pointer move", "x", x, "y", y)
	return nil
}

func (p *NullPointer) LeftDown(ctx context.Context) error   { return nil }
func (p *NullPointer) LeftUp(ctx context.Context) error     { return nil }
func (p *NullPointer) LeftClick(ctx context.Context) error  { return nil }
func (p *NullPointer) RightClick(ctx context.Context) error { return nil }

func (p *NullPointer) Scroll(ctx context.Context, horizontal, vertical int) error {
	return nil
}

// NullGamepad swallows controller snapshots.
type NullGamepad struct {
	logger *zap.SugaredLogger
}

func NewNullGamepad(logger *zap.SugaredLogger) *NullGamepad {
	return &NullGamepad{logger: logger}
}

func (g *NullGamepad) Push(ctx context.Context, state domain.GamepadState) error {
	g.logger.Debugw("null gamepad push", "buttons", state.Buttons)
	return nil
}

func (g *NullGamepad) Close() error { return nil }

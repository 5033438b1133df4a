// Package actuate adapts decoded input commands onto real devices: the
// host pointer via robotgo and a virtual game controller via a local
// driver bridge.
package actuate

import (
	"context"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"
)

// RobotgoPointer injects pointer events into the host desktop.
type RobotgoPointer struct {
	logger *zap.SugaredLogger
}

func NewRobotgoPointer(logger *zap.SugaredLogger) *RobotgoPointer {
	return &RobotgoPointer{logger: logger}
}

func (p *RobotgoPointer) MoveTo(ctx context.Context, x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (p *RobotgoPointer) LeftDown(ctx context.Context) error {
	return robotgo.Toggle("left", "down")
}

func (p *RobotgoPointer) LeftUp(ctx context.Context) error {
	return robotgo.Toggle("left", "up")
}

func (p *RobotgoPointer) LeftClick(ctx context.Context) error {
	robotgo.Click("left")
	return nil
}

func (p *RobotgoPointer) RightClick(ctx context.Context) error {
	robotgo.Click("right")
	return nil
}

func (p *RobotgoPointer) Scroll(ctx context.Context, horizontal, vertical int) error {
	robotgo.Scroll(horizontal, vertical)
	return nil
}

package services

import (
	"context"
	"errors"
	"math"
	"sync"

	"go.uber.org/zap"

	"playcast/internal/core/domain"
	"playcast/internal/core/ports"
	apperrors "playcast/pkg/errors"
)

// scrollDeadzone filters out sub-threshold scroll deltas caused by
// floating point jitter on the viewer side.
const scrollDeadzone = 0.1

// ActuationService applies decoded input commands to the host. Cursor
// commands go straight to the pointer collaborator; gamepad commands
// mutate the controller snapshot under one lock and push the full
// snapshot after every mutation, so the virtual controller observes
// button edges in mutation order.
type ActuationService struct {
	pointer ports.PointerInput
	gamepad ports.GamepadOutput
	metrics *MetricsService
	logger  *zap.SugaredLogger

	mu    sync.Mutex
	state domain.GamepadState
}

func NewActuationService(
	pointer ports.PointerInput,
	gamepad ports.GamepadOutput,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) *ActuationService {
	return &ActuationService{
		pointer: pointer,
		gamepad: gamepad,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *ActuationService) Dispatch(ctx context.Context, from string, cmd domain.InputCommand) error {
	var err error
	switch {
	case cmd.Kind.IsCursor():
		err = s.applyCursor(ctx, cmd)
	case cmd.Kind.IsGamepad():
		err = s.applyGamepad(ctx, cmd)
	default:
		s.metrics.RecordCommandRejected()
		return domain.ErrUnknownCommand
	}

	if err != nil {
		s.metrics.RecordCommandRejected()
		if !errors.Is(err, domain.ErrUnknownCommand) {
			s.metrics.RecordActuationFailure()
		}
		s.logger.Warnw("actuation failed",
			"command", cmd.Kind.String(),
			"from", from,
			"error", err)
		return err
	}

	s.metrics.RecordCommandApplied()
	return nil
}

// applyCursor handles pointer commands. Button commands move first so
// the press or release lands at the intended screen position; a failed
// move aborts the button action.
func (s *ActuationService) applyCursor(ctx context.Context, cmd domain.InputCommand) error {
	x := int(cmd.X())
	y := int(cmd.Y())

	switch cmd.Kind {
	case domain.CommandCursorMove:
		return s.moveTo(ctx, x, y)
	case domain.CommandCursorLeftDown:
		if err := s.moveTo(ctx, x, y); err != nil {
			return err
		}
		return s.buttonAction(s.pointer.LeftDown(ctx), "left down")
	case domain.CommandCursorLeftUp:
		if err := s.moveTo(ctx, x, y); err != nil {
			return err
		}
		return s.buttonAction(s.pointer.LeftUp(ctx), "left up")
	case domain.CommandCursorLeftClick:
		if err := s.moveTo(ctx, x, y); err != nil {
			return err
		}
		return s.buttonAction(s.pointer.LeftClick(ctx), "left click")
	case domain.CommandCursorRightClick:
		if err := s.moveTo(ctx, x, y); err != nil {
			return err
		}
		return s.buttonAction(s.pointer.RightClick(ctx), "right click")
	case domain.CommandCursorScroll:
		return s.applyScroll(ctx, cmd.X(), cmd.Y())
	}
	return domain.ErrUnknownCommand
}

func (s *ActuationService) moveTo(ctx context.Context, x, y int) error {
	if err := s.pointer.MoveTo(ctx, x, y); err != nil {
		return apperrors.NewActuationFailure(err, "pointer move")
	}
	return nil
}

func (s *ActuationService) buttonAction(err error, action string) error {
	if err != nil {
		return apperrors.NewActuationFailure(err, action)
	}
	return nil
}

// applyScroll scales each axis by -1/10 and applies it only when its
// raw magnitude clears the dead zone.
func (s *ActuationService) applyScroll(ctx context.Context, x, y float32) error {
	var horizontal, vertical int
	if math.Abs(float64(x)) > scrollDeadzone {
		horizontal = int(-x / 10)
	}
	if math.Abs(float64(y)) > scrollDeadzone {
		vertical = int(-y / 10)
	}
	if horizontal == 0 && vertical == 0 {
		return nil
	}
	if err := s.pointer.Scroll(ctx, horizontal, vertical); err != nil {
		return apperrors.NewActuationFailure(err, "scroll")
	}
	return nil
}

// applyGamepad mutates the controller snapshot and pushes it whole.
// The push happens while the lock is held so pushes reach the virtual
// controller in mutation order. A failed push is logged only; the
// snapshot stays authoritative and the next push reconciles it.
func (s *ActuationService) applyGamepad(ctx context.Context, cmd domain.InputCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Kind {
	case domain.CommandGamepadButtonL2:
		s.state.LeftTrigger = domain.TriggerFromFloat(cmd.X())
	case domain.CommandGamepadButtonR2:
		s.state.RightTrigger = domain.TriggerFromFloat(cmd.X())
	case domain.CommandGamepadLeftStick:
		s.state.ThumbLX = domain.AxisFromFloat(cmd.X())
		s.state.ThumbLY = domain.AxisFromFloat(-cmd.Y())
	case domain.CommandGamepadRightStick:
		s.state.ThumbRX = domain.AxisFromFloat(cmd.X())
		s.state.ThumbRY = domain.AxisFromFloat(-cmd.Y())
	default:
		mask, ok := domain.ButtonMask(cmd.Kind)
		if !ok {
			return domain.ErrUnknownCommand
		}
		if cmd.Pressed() {
			s.state.Press(mask)
		} else {
			s.state.Release(mask)
		}
	}

	if err := s.gamepad.Push(ctx, s.state); err != nil {
		s.metrics.RecordActuationFailure()
		s.logger.Warnw("controller push failed",
			"command", cmd.Kind.String(),
			"error", err)
	}
	return nil
}

// Snapshot returns a copy of the current controller state.
func (s *ActuationService) Snapshot() domain.GamepadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

package actuate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"playcast/internal/core/ports"
	"playcast/pkg/circuitbreaker"
	"playcast/pkg/config"
)

// NewPointer builds the configured pointer injector. A bridge target
// that is down at startup degrades to the null device with a warning;
// an unknown driver name is a configuration error.
func NewPointer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (ports.PointerInput, error) {
	switch cfg.Actuation.Pointer {
	case "native":
		logger.Infow("using native pointer injection")
		return NewRobotgoPointer(logger), nil
	case "bridge":
		pointer := NewBridgePointer(cfg.Actuation.BridgeURL, cfg.Actuation.DialTimeout, logger)
		if err := pointer.Connect(ctx); err != nil {
			logger.Warnw("pointer bridge unavailable, pointer injection disabled",
				"url", cfg.Actuation.BridgeURL,
				"error", err)
			pointer.Close()
			return NewNullPointer(logger), nil
		}
		return pointer, nil
	case "off":
		logger.Infow("pointer injection disabled")
		return NewNullPointer(logger), nil
	default:
		return nil, fmt.Errorf("unknown pointer driver %q", cfg.Actuation.Pointer)
	}
}

// NewGamepad builds the configured virtual controller output. The
// bridge degrades to a null device when the driver agent is down at
// startup; the host still streams, it just loses the controller.
func NewGamepad(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (ports.GamepadOutput, error) {
	switch cfg.Actuation.Gamepad {
	case "bridge":
		bridge := NewBridgeGamepad(cfg.Actuation.BridgeURL, cfg.Actuation.DialTimeout, logger)
		if err := bridge.Connect(ctx); err != nil {
			logger.Warnw("gamepad bridge unavailable, virtual controller disabled",
				"url", cfg.Actuation.BridgeURL,
				"error", err)
			bridge.Close()
			return NewNullGamepad(logger), nil
		}
		wrapped := NewBreakerGamepad(bridge, circuitbreaker.DefaultConfig(), logger)
		bridge.SetOnReconnect(wrapped.Reset)
		return wrapped, nil
	case "off":
		logger.Infow("virtual controller disabled")
		return NewNullGamepad(logger), nil
	default:
		return nil, fmt.Errorf("unknown gamepad driver %q", cfg.Actuation.Gamepad)
	}
}

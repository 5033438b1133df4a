package actuate

import (
	"context"

	"go.uber.org/zap"

	"playcast/internal/core/domain"
	"playcast/internal/core/ports"
	"playcast/pkg/circuitbreaker"
)

// BreakerGamepad short-circuits pushes while the driver endpoint is
// down, so a dead agent costs a counter bump instead of a write
// timeout on every input command.
type BreakerGamepad struct {
	inner   ports.GamepadOutput
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

func NewBreakerGamepad(inner ports.GamepadOutput, cfg circuitbreaker.Config, logger *zap.SugaredLogger) *BreakerGamepad {
	g := &BreakerGamepad{
		inner:   inner,
		breaker: circuitbreaker.New(cfg),
		logger:  logger,
	}
	g.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("gamepad breaker state changed",
			"from", from.String(),
			"to", to.String())
	})
	return g
}

func (g *BreakerGamepad) Push(ctx context.Context, state domain.GamepadState) error {
	return g.breaker.Execute(ctx, func() error {
		return g.inner.Push(ctx, state)
	})
}

func (g *BreakerGamepad) Close() error {
	return g.inner.Close()
}

// Reset snaps the breaker shut again. Wired to the bridge's reconnect
// hook so recovery doesn't wait out the open-state timeout.
func (g *BreakerGamepad) Reset() {
	g.breaker.Reset()
}

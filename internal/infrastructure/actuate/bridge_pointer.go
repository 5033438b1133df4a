package actuate

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "playcast/pkg/errors"
)

type pointerMovePayload struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type pointerButtonPayload struct {
	Type   string `json:"type"`
	Button string `json:"button"`
	Action string `json:"action"`
}

type pointerScrollPayload struct {
	Type       string `json:"type"`
	Horizontal int    `json:"horizontal"`
	Vertical   int    `json:"vertical"`
}

// BridgePointer forwards pointer commands to the driver agent instead
// of injecting them locally. Used when the agent sits closer to the
// desktop than this process does, e.g. across a session boundary.
type BridgePointer struct {
	conn *bridgeConn
}

func NewBridgePointer(url string, dialTimeout time.Duration, logger *zap.SugaredLogger) *BridgePointer {
	return &BridgePointer{conn: newBridgeConn(url, dialTimeout, logger)}
}

func (p *BridgePointer) Connect(ctx context.Context) error {
	return p.conn.connect(ctx)
}

func (p *BridgePointer) Close() error {
	return p.conn.close()
}

func (p *BridgePointer) MoveTo(ctx context.Context, x, y int) error {
	return p.send(pointerMovePayload{Type: "pointer-move", X: x, Y: y})
}

func (p *BridgePointer) LeftDown(ctx context.Context) error {
	return p.send(pointerButtonPayload{Type: "pointer-button", Button: "left", Action: "down"})
}

func (p *BridgePointer) LeftUp(ctx context.Context) error {
	return p.send(pointerButtonPayload{Type: "pointer-button", Button: "left", Action: "up"})
}

func (p *BridgePointer) LeftClick(ctx context.Context) error {
	return p.send(pointerButtonPayload{Type: "pointer-button", Button: "left", Action: "click"})
}

func (p *BridgePointer) RightClick(ctx context.Context) error {
	return p.send(pointerButtonPayload{Type: "pointer-button", Button: "right", Action: "click"})
}

func (p *BridgePointer) Scroll(ctx context.Context, horizontal, vertical int) error {
	return p.send(pointerScrollPayload{Type: "pointer-scroll", Horizontal: horizontal, Vertical: vertical})
}

func (p *BridgePointer) send(v any) error {
	if err := p.conn.sendJSON(v); err != nil {
		return apperrors.NewActuationFailure(err, "pointer bridge")
	}
	return nil
}

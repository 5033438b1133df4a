// Package discovery announces the host on the local network so viewers
// can find the signaling endpoint without manual configuration.
package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"playcast/internal/infrastructure/monitoring"
	apperrors "playcast/pkg/errors"
)

const (
	DefaultTag           = "GAME_STREAM_SERVER"
	DefaultBroadcastAddr = "255.255.255.255:55555"

	defaultInterval = 2 * time.Second
)

// Beacon periodically broadcasts a `<tag>:<port>` datagram. Nothing
// listens for replies; clients that care simply dial the advertised
// signaling port.
type Beacon struct {
	target     string
	tag        string
	signalPort int
	interval   time.Duration
	collector  *monitoring.PrometheusCollector
	logger     *zap.SugaredLogger

	conn net.PacketConn
	done chan struct{}
}

func NewBeacon(
	target string,
	tag string,
	signalPort int,
	collector *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) *Beacon {
	return &Beacon{
		target:     target,
		tag:        tag,
		signalPort: signalPort,
		interval:   defaultInterval,
		collector:  collector,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// SetInterval sets the announcement period.
func (b *Beacon) SetInterval(interval time.Duration) {
	b.interval = interval
}

// Payload returns the datagram body being announced.
func (b *Beacon) Payload() string {
	return b.tag + ":" + strconv.Itoa(b.signalPort)
}

// Start opens a broadcast-capable socket and announces until ctx is
// cancelled. Send failures are logged and the loop keeps going; only a
// failure to open the socket or resolve the target is returned.
func (b *Beacon) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", b.target)
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeInvalidInput,
			"unresolvable broadcast target "+b.target, 0)
	}

	conn, err := broadcastListenConfig().ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return apperrors.NewBindFailure(err, "udp broadcast socket")
	}
	b.conn = conn

	go b.announce(ctx, addr)
	b.logger.Infow("discovery beacon started",
		"target", b.target,
		"payload", b.Payload(),
		"interval", b.interval)
	return nil
}

// Done is closed once the announce loop has exited and the socket is
// released.
func (b *Beacon) Done() <-chan struct{} {
	return b.done
}

func (b *Beacon) announce(ctx context.Context, addr *net.UDPAddr) {
	defer close(b.done)
	defer b.conn.Close()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	payload := []byte(b.Payload())
	for {
		if _, err := b.conn.WriteTo(payload, addr); err != nil {
			b.logger.Warnw("beacon send failed", "target", b.target, "error", err)
		} else {
			b.collector.RecordBeaconAnnouncement()
		}

		select {
		case <-ctx.Done():
			b.logger.Infow("discovery beacon stopped")
			return
		case <-ticker.C:
		}
	}
}

// broadcastListenConfig returns a ListenConfig whose sockets may send
// to the broadcast address. The sockopt lives in per-platform files.
func broadcastListenConfig() *net.ListenConfig {
	return &net.ListenConfig{Control: setBroadcastOption}
}

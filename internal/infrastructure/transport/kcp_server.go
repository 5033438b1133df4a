// Package transport carries input commands over a reliable UDP
// channel. KCP owns retransmission and ack bookkeeping; this package
// owns the endpoint, the session limit and the event loop that feeds
// decoded commands into the dispatcher.
package transport

import (
	"context"
	"net"
	"sync"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
	"go.uber.org/zap"

	"playcast/internal/core/ports"
	"playcast/internal/infrastructure/codec"
	"playcast/internal/infrastructure/monitoring"
	apperrors "playcast/pkg/errors"
	"playcast/pkg/optimize"
	"playcast/pkg/tracing"
)

const (
	defaultPeerLimit    = 1
	defaultIdleTimeout  = 30 * time.Second
	defaultPollInterval = 10 * time.Millisecond
	defaultWindowSize   = 128

	// Receive buffers are sized for a full datagram even though input
	// packets are far smaller, so oversized junk surfaces as a decode
	// error instead of a short read.
	receiveBufferSize = 1500
)

type eventKind int

const (
	eventConnect eventKind = iota
	eventDisconnect
	eventReceive
)

type event struct {
	kind eventKind
	addr string
	data []byte
	n    int
}

// Server accepts KCP sessions and pumps their packets through the
// binary codec into the input sink. Presence is owned by the signaling
// registry; transport sessions only carry commands.
type Server struct {
	addr      string
	sink      ports.InputSink
	sessions  ports.SessionService
	collector *monitoring.PrometheusCollector
	logger    *zap.SugaredLogger

	peerLimit    int
	idleTimeout  time.Duration
	pollInterval time.Duration
	windowSize   int

	pool     *optimize.BytePool
	listener *kcp.Listener
	events   chan event
	done     chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	active map[string]*kcp.UDPSession
}

func NewServer(
	addr string,
	sink ports.InputSink,
	sessions ports.SessionService,
	collector *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) *Server {
	return &Server{
		addr:         addr,
		sink:         sink,
		sessions:     sessions,
		collector:    collector,
		logger:       logger,
		peerLimit:    defaultPeerLimit,
		idleTimeout:  defaultIdleTimeout,
		pollInterval: defaultPollInterval,
		windowSize:   defaultWindowSize,
		pool:         optimize.NewBytePool(receiveBufferSize),
		events:       make(chan event, 256),
		done:         make(chan struct{}),
		active:       make(map[string]*kcp.UDPSession),
	}
}

// SetPeerLimit sets how many concurrent transport sessions are served.
func (s *Server) SetPeerLimit(limit int) {
	s.peerLimit = limit
}

// SetIdleTimeout sets how long a session may stay silent before it is
// closed.
func (s *Server) SetIdleTimeout(timeout time.Duration) {
	s.idleTimeout = timeout
}

// SetWindowSize sets the KCP send and receive windows in packets.
func (s *Server) SetWindowSize(size int) {
	s.windowSize = size
}

// SetPollInterval sets the pacing of the per-session read loop.
func (s *Server) SetPollInterval(interval time.Duration) {
	s.pollInterval = interval
}

// ActiveSessions reports how many transport sessions are currently
// served.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Start binds the UDP listener and runs the accept and event loops in
// the background.
func (s *Server) Start() error {
	listener, err := kcp.ListenWithOptions(s.addr, nil, 0, 0)
	if err != nil {
		return apperrors.NewBindFailure(err, s.addr)
	}
	s.listener = listener

	s.wg.Add(2)
	go s.acceptLoop()
	go s.serve()

	s.logger.Infow("input transport listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown closes the listener and every live session, then waits for
// the loops to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for _, sess := range s.active {
		sess.Close()
	}
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		sess, err := s.listener.AcceptKCP()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Errorw("transport accept failed", "error", err)
			}
			return
		}

		addr := sess.RemoteAddr().String()
		s.mu.Lock()
		if len(s.active) >= s.peerLimit {
			s.mu.Unlock()
			s.collector.RecordSessionRejected()
			s.logger.Warnw("transport session rejected",
				"addr", addr,
				"limit", s.peerLimit)
			sess.Close()
			continue
		}
		s.active[addr] = sess
		s.mu.Unlock()

		s.tuneSession(sess)
		s.postEvent(event{kind: eventConnect, addr: addr})

		s.wg.Add(1)
		go s.readLoop(sess, addr)
	}
}

// tuneSession applies the low latency profile: message mode, turbo
// no-delay, eager acks.
func (s *Server) tuneSession(sess *kcp.UDPSession) {
	sess.SetStreamMode(false)
	sess.SetNoDelay(1, 10, 2, 1)
	sess.SetACKNoDelay(true)
	sess.SetWindowSize(s.windowSize, s.windowSize)
}

func (s *Server) readLoop(sess *kcp.UDPSession, addr string) {
	defer s.wg.Done()
	defer func() {
		sess.Close()
		s.mu.Lock()
		delete(s.active, addr)
		s.mu.Unlock()
		s.postEvent(event{kind: eventDisconnect, addr: addr})
	}()

	for {
		buf := s.pool.Get()
		sess.SetReadDeadline(time.Now().Add(s.idleTimeout))
		n, err := sess.Read(buf)
		if err != nil {
			s.pool.Put(buf)
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.logger.Infow("transport session idle, closing", "addr", addr)
			}
			return
		}
		s.postEvent(event{kind: eventReceive, addr: addr, data: buf, n: n})
	}
}

// postEvent never blocks the read path. A full queue means the event
// loop is stalled; dropping the packet is safer than backpressuring
// the socket.
func (s *Server) postEvent(ev event) {
	select {
	case s.events <- ev:
	default:
		if ev.data != nil {
			s.pool.Put(ev.data)
		}
		s.logger.Warnw("transport event queue full, dropping event", "addr", ev.addr)
	}
}

// serve drains every queued event per pass and naps only after a pass
// that found nothing.
func (s *Server) serve() {
	defer s.wg.Done()

	for {
		handled := s.drainEvents()

		select {
		case <-s.done:
			return
		default:
		}
		if handled == 0 {
			time.Sleep(s.pollInterval)
		}
	}
}

func (s *Server) drainEvents() int {
	handled := 0
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
			handled++
		default:
			return handled
		}
	}
}

func (s *Server) handleEvent(ev event) {
	switch ev.kind {
	case eventConnect:
		s.logger.Infow("transport session opened", "addr", ev.addr)
	case eventDisconnect:
		s.logger.Infow("transport session closed", "addr", ev.addr)
	case eventReceive:
		s.handlePacket(ev.addr, ev.data[:ev.n])
		s.pool.Put(ev.data)
	}
}

func (s *Server) handlePacket(addr string, data []byte) {
	cmd, err := codec.DecodePacket(data)
	if err != nil {
		s.collector.RecordInputCommand("kcp", false)
		s.logger.Warnw("dropping undecodable packet",
			"addr", addr,
			"size", len(data),
			"code", string(codec.CodeFor(err)),
			"error", err)
		return
	}

	if !s.sessions.AllowInput(addr) {
		s.collector.RecordInputCommand("kcp", false)
		s.logger.Debugw("dropping input from non-control peer", "addr", addr)
		return
	}

	start := time.Now()
	ctx, span := tracing.TraceInputCommand(context.Background(), cmd.Kind.String(), addr)
	err = s.sink.Dispatch(ctx, addr, cmd)
	if err != nil {
		tracing.RecordError(ctx, err)
		if appErr := apperrors.GetAppError(err); appErr != nil && appErr.Code == apperrors.ErrCodeActuationFailure {
			s.collector.RecordActuationFailure()
		}
	}
	span.End()

	s.collector.ObserveDispatchDuration(time.Since(start))
	s.collector.RecordInputCommand("kcp", err == nil)
}

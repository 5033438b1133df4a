package signal

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"playcast/internal/core/domain"
	"playcast/internal/core/ports"
	"playcast/internal/infrastructure/codec"
	"playcast/internal/infrastructure/monitoring"
	apperrors "playcast/pkg/errors"
	"playcast/pkg/settings"
	"playcast/pkg/tracing"
	"playcast/pkg/utils"
)

var upgrader = websocket.Upgrader{
	// Viewers connect from arbitrary LAN origins.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// upgradeLimiterStore keeps one token bucket per source IP so a
// misbehaving client can't spin the upgrade path.
type upgradeLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newUpgradeLimiterStore(r rate.Limit, burst int) *upgradeLimiterStore {
	return &upgradeLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (s *upgradeLimiterStore) allow(key string) bool {
	s.mu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[key] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

// Server is the signaling endpoint. Each accepted viewer gets a peer
// record with an outbound frame queue; inbound text frames are probed
// for input envelopes and every non-close frame is relayed verbatim to
// all other peers.
type Server struct {
	addr      string
	sessions  ports.SessionService
	sink      ports.InputSink
	store     *settings.Store
	collector *monitoring.PrometheusCollector
	logger    *zap.SugaredLogger

	limiters   *upgradeLimiterStore
	httpServer *http.Server
	listener   net.Listener

	connMu   sync.Mutex
	conns    map[*websocket.Conn]struct{}
	draining bool
	handlers sync.WaitGroup

	requirePIN      bool
	pingInterval    time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	maxMessageBytes int64
}

func NewServer(
	addr string,
	sessions ports.SessionService,
	sink ports.InputSink,
	store *settings.Store,
	collector *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) *Server {
	return &Server{
		addr:            addr,
		sessions:        sessions,
		sink:            sink,
		store:           store,
		collector:       collector,
		logger:          logger,
		limiters:        newUpgradeLimiterStore(rate.Limit(5), 10),
		conns:           make(map[*websocket.Conn]struct{}),
		pingInterval:    30 * time.Second,
		readTimeout:     60 * time.Second,
		writeTimeout:    10 * time.Second,
		maxMessageBytes: 64 * 1024,
	}
}

// SetRequirePIN toggles the PIN check on upgrades. Off by default;
// an empty host PIN leaves upgrades open either way.
func (s *Server) SetRequirePIN(require bool) {
	s.requirePIN = require
}

// SetPingInterval sets the keepalive ping interval.
func (s *Server) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// SetReadTimeout sets the pong-refreshed read deadline window.
func (s *Server) SetReadTimeout(timeout time.Duration) {
	s.readTimeout = timeout
}

// SetMaxMessageBytes caps inbound frame size. Zero disables the cap.
func (s *Server) SetMaxMessageBytes(limit int64) {
	s.maxMessageBytes = limit
}

// SetUpgradeLimit replaces the per-IP upgrade rate limit.
func (s *Server) SetUpgradeLimit(r rate.Limit, burst int) {
	s.limiters = newUpgradeLimiterStore(r, burst)
}

// Start binds the listener and serves in the background. A bind
// failure is returned to the caller; the process cannot run without
// its signaling port.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return apperrors.NewBindFailure(err, s.addr)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("signal server stopped", "error", err)
		}
	}()

	s.logger.Infow("signal server listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the listener, sends a close frame to every connected
// peer and waits for their handlers to unregister. Upgraded sockets are
// hijacked from the HTTP server, so they have to be torn down here.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)

	s.connMu.Lock()
	s.draining = true
	for conn := range s.conns {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "host shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
		_ = conn.Close()
	}
	s.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// trackConn registers a live connection for shutdown teardown. It
// refuses new connections once draining has begun.
func (s *Server) trackConn(conn *websocket.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.draining {
		return false
	}
	s.conns[conn] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrackConn(conn *websocket.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
	s.handlers.Done()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := hostPart(r.RemoteAddr)
	if !s.limiters.allow(ip) {
		s.logger.Warnw("upgrade rate limit exceeded", "ip", ip)
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	if pin := s.store.PIN(); s.requirePIN && pin != "" {
		got := r.URL.Query().Get("pin")
		if got != pin {
			s.logger.Warnw("rejected connection with wrong pin",
				"ip", ip,
				"pin", utils.MaskSensitive(got, 1))
			http.Error(w, "invalid pin", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error; the failure drops this
		// connection only.
		s.logger.Warnw("websocket handshake failed", "ip", ip,
			"error", apperrors.NewHandshakeFailure(err, r.RemoteAddr))
		return
	}
	defer conn.Close()

	if !s.trackConn(conn) {
		return
	}
	defer s.untrackConn(conn)

	addr := conn.RemoteAddr().String()
	queue := domain.NewFrameQueue()

	rec, err := s.sessions.Register(context.Background(), addr, queue)
	if err != nil {
		s.logger.Infow("peer rejected", "addr", addr, "error", err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "peer limit reached")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
		return
	}
	s.collector.RecordPeerJoined()
	s.logger.Infow("peer connected", "addr", addr, "session_id", rec.SessionID)

	go s.writePump(conn, queue, addr)
	s.readPump(conn, addr)

	// Unregister closes the queue, which terminates the write pump. If
	// the peer was already kicked or replaced there is nothing left to
	// remove.
	if err := s.sessions.Unregister(context.Background(), addr, queue); err != nil &&
		!errors.Is(err, domain.ErrPeerNotFound) {
		s.logger.Warnw("unregister failed", "addr", addr, "error", err)
	}
	s.collector.RecordPeerLeft()
	s.logger.Infow("peer disconnected", "addr", addr)
}

// readPump drains inbound frames until the connection dies. Text
// frames are probed for input envelopes first; every frame is then
// relayed to the other peers regardless.
func (s *Server) readPump(conn *websocket.Conn, addr string) {
	conn.SetReadLimit(s.maxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("read failed", "addr", addr, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		if msgType == websocket.TextMessage {
			s.handleInputFrame(addr, data)
		}

		delivered := s.sessions.Broadcast(context.Background(), addr, domain.Frame{
			Type: msgType,
			Data: data,
		})
		s.collector.RecordFrameRelayed(len(data), delivered)
	}
}

// handleInputFrame feeds a text frame through the input codec. Frames
// that are not input envelopes belong to the relay and are skipped
// quietly; undecodable envelopes are logged and dropped without
// touching the connection.
func (s *Server) handleInputFrame(addr string, data []byte) {
	cmd, err := codec.DecodeText(data)
	if errors.Is(err, domain.ErrNotInput) {
		s.logger.Debugw("relaying non-input frame",
			"addr", addr,
			"preview", framePreview(data))
		return
	}
	if err != nil {
		s.collector.RecordInputCommand("signal", false)
		s.logger.Warnw("dropping undecodable input frame",
			"addr", addr,
			"code", string(codec.CodeFor(err)),
			"error", err,
			"preview", framePreview(data))
		return
	}

	if !s.sessions.AllowInput(addr) {
		s.collector.RecordInputCommand("signal", false)
		s.logger.Debugw("dropping input from non-control peer", "addr", addr)
		return
	}

	ctx, span := tracing.TraceInputCommand(context.Background(), cmd.Kind.String(), addr)
	err = s.sink.Dispatch(ctx, addr, cmd)
	if err != nil {
		tracing.RecordError(ctx, err)
		if appErr := apperrors.GetAppError(err); appErr != nil && appErr.Code == apperrors.ErrCodeActuationFailure {
			s.collector.RecordActuationFailure()
		}
	}
	span.End()
	s.collector.RecordInputCommand("signal", err == nil)
}

// writePump drains the peer's outbound queue onto the socket and keeps
// the connection alive with pings. It exits when the queue closes or a
// write fails; closing the connection then unblocks the read pump.
func (s *Server) writePump(conn *websocket.Conn, queue *domain.FrameQueue, addr string) {
	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()
	defer conn.Close()

	for {
		select {
		case <-queue.Wait():
			frames, open := queue.PopAll()
			for _, frame := range frames {
				conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
				if err := conn.WriteMessage(frame.Type, frame.Data); err != nil {
					s.logger.Infow("write failed", "addr", addr, "error", err)
					return
				}
			}
			if !open {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("ping failed", "addr", addr, "error", err)
				return
			}
		}
	}
}

func framePreview(data []byte) string {
	return utils.TruncateString(utils.SanitizeString(string(data)), 64)
}

func hostPart(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

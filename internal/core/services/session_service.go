package services

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"playcast/internal/core/domain"
	"playcast/internal/core/ports"
	"playcast/pkg/settings"
	"playcast/pkg/tracing"
	"playcast/pkg/utils"
)

type lifecycleKind int

const (
	eventFirstJoined lifecycleKind = iota
	eventLastLeft
)

type lifecycleEvent struct {
	kind lifecycleKind
	host string
}

// SessionService owns the peer registry and is the single source of
// presence truth. Pipeline transitions derived from presence changes
// are executed in arrival order by one lifecycle worker, so a quick
// join/leave/join cannot interleave start and stop.
type SessionService struct {
	store    *settings.Store
	pipeline ports.PipelineController
	mirror   ports.PresenceMirror
	metrics  *MetricsService
	logger   *zap.SugaredLogger

	mu     sync.RWMutex
	peers  map[string]*domain.PeerRecord
	closed bool

	events    chan lifecycleEvent
	workerWG  sync.WaitGroup
	closeOnce sync.Once
}

func NewSessionService(
	store *settings.Store,
	pipeline ports.PipelineController,
	mirror ports.PresenceMirror,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) *SessionService {
	return &SessionService{
		store:    store,
		pipeline: pipeline,
		mirror:   mirror,
		metrics:  metrics,
		logger:   logger,
		peers:    make(map[string]*domain.PeerRecord),
		events:   make(chan lifecycleEvent, 64),
	}
}

// Start launches the lifecycle worker. Presence changes enqueued before
// Start are executed once it runs.
func (s *SessionService) Start(ctx context.Context) {
	s.workerWG.Add(1)
	go s.runLifecycle(ctx)
}

// Close stops the lifecycle worker after it has drained pending
// transitions. Peers stay registered; the signal server tears down
// connections on its own shutdown path.
func (s *SessionService) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
		s.workerWG.Wait()
	})
}

func (s *SessionService) Register(ctx context.Context, address string, queue *domain.FrameQueue) (*domain.PeerRecord, error) {
	ctx, span := tracing.TraceSessionEvent(ctx, "register", address)
	defer span.End()

	s.mu.Lock()
	wasEmpty := len(s.peers) == 0

	if old, ok := s.peers[address]; ok {
		// A reconnect from the same address means the old socket is
		// stale. Drop the old record so the new one takes its place.
		old.Queue.Close()
		delete(s.peers, address)
		s.logger.Warnw("replacing stale peer registration", "addr", address, "session_id", old.SessionID)
	} else if s.policy() == domain.PolicySinglePeer && len(s.peers) >= 1 {
		s.mu.Unlock()
		tracing.RecordError(ctx, domain.ErrPeerLimit)
		s.logger.Infow("peer rejected by policy", "addr", address, "policy", domain.PolicySinglePeer)
		return nil, domain.ErrPeerLimit
	}

	rec := &domain.PeerRecord{
		Address:     address,
		SessionID:   domain.SessionID(uuid.New().String()),
		ConnectedAt: time.Now(),
		Queue:       queue,
	}
	s.peers[address] = rec

	// A same-address replace keeps the registry non-empty throughout,
	// so it must not count as a fresh empty-to-non-empty transition.
	if wasEmpty {
		s.enqueueLocked(lifecycleEvent{kind: eventFirstJoined, host: hostOf(address)})
	}
	s.mu.Unlock()

	s.metrics.RecordJoin()
	tracing.AddSpanAttributes(ctx, tracing.SessionIDKey.String(string(rec.SessionID)))
	if err := s.mirror.PeerJoined(ctx, *rec); err != nil {
		s.logger.Warnw("presence mirror join failed", "addr", address, "error", err)
	}
	s.logger.Infow("peer registered", "addr", address, "session_id", rec.SessionID)
	return rec, nil
}

func (s *SessionService) Unregister(ctx context.Context, address string, queue *domain.FrameQueue) error {
	ctx, span := tracing.TraceSessionEvent(ctx, "unregister", address)
	defer span.End()

	s.mu.Lock()
	rec, ok := s.peers[address]
	if !ok || rec.Queue != queue {
		s.mu.Unlock()
		return domain.ErrPeerNotFound
	}
	s.removeLocked(rec)
	s.mu.Unlock()

	s.afterRemove(ctx, rec)
	s.logger.Infow("peer unregistered", "addr", address, "session_id", rec.SessionID)
	return nil
}

// Kick force-disconnects a peer. Closing the queue makes the write pump
// exit, which closes the socket; the read pump's own unregister then
// finds nothing and is a no-op.
func (s *SessionService) Kick(ctx context.Context, address string) error {
	ctx, span := tracing.TraceSessionEvent(ctx, "kick", address)
	defer span.End()

	s.mu.Lock()
	rec, ok := s.peers[address]
	if !ok {
		s.mu.Unlock()
		return domain.ErrPeerNotFound
	}
	s.removeLocked(rec)
	s.mu.Unlock()

	s.afterRemove(ctx, rec)
	s.logger.Infow("peer kicked", "addr", address, "session_id", rec.SessionID)
	return nil
}

// removeLocked deletes the record and enqueues the stop transition when
// it was the last peer. Caller must hold the write lock.
func (s *SessionService) removeLocked(rec *domain.PeerRecord) {
	delete(s.peers, rec.Address)
	rec.Queue.Close()
	if len(s.peers) == 0 {
		s.enqueueLocked(lifecycleEvent{kind: eventLastLeft})
	}
}

func (s *SessionService) afterRemove(ctx context.Context, rec *domain.PeerRecord) {
	s.metrics.RecordLeave()
	if err := s.mirror.PeerLeft(ctx, rec.Address); err != nil {
		s.logger.Warnw("presence mirror leave failed", "addr", rec.Address, "error", err)
	}
}

// Broadcast relays frame to every registered peer except the sender and
// returns the number of queued copies.
func (s *SessionService) Broadcast(ctx context.Context, from string, frame domain.Frame) int {
	s.mu.RLock()
	delivered := 0
	for addr, rec := range s.peers {
		if addr == from {
			continue
		}
		if err := rec.Queue.Push(frame); err != nil {
			continue
		}
		delivered++
	}
	s.mu.RUnlock()

	s.metrics.RecordFramesRelayed(delivered)
	return delivered
}

// AllowInput reports whether input from remoteAddr may reach the
// dispatcher. Input arrives over its own datagram socket with an
// ephemeral source port, so matching is by host part against the
// signaling registry: under MultiplePeersMultipleControl any registered
// host controls, otherwise only the earliest-connected peer does.
func (s *SessionService) AllowInput(remoteAddr string) bool {
	remoteHost := hostOf(remoteAddr)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.peers) == 0 {
		return false
	}
	if s.policy() == domain.PolicyMultipleControl {
		for addr := range s.peers {
			if hostOf(addr) == remoteHost {
				return true
			}
		}
		return false
	}
	holder := s.controlHolderLocked()
	return holder != nil && hostOf(holder.Address) == remoteHost
}

func (s *SessionService) Snapshot(ctx context.Context) domain.StreamingSessionView {
	s.mu.RLock()
	records := make([]*domain.PeerRecord, 0, len(s.peers))
	for _, rec := range s.peers {
		records = append(records, rec)
	}
	holder := s.controlHolderLocked()
	multiControl := s.policy() == domain.PolicyMultipleControl
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].ConnectedAt.Before(records[j].ConnectedAt)
	})

	now := time.Now()
	peers := make([]domain.PeerView, 0, len(records))
	for _, rec := range records {
		peers = append(peers, domain.PeerView{
			Address:      rec.Address,
			SessionID:    rec.SessionID,
			ConnectedAt:  rec.ConnectedAt.UTC(),
			Uptime:       utils.FormatDuration(now.Sub(rec.ConnectedAt)),
			QueuedFrames: rec.Queue.Len(),
			HasControl:   multiControl || rec == holder,
		})
	}

	stats := s.metrics.Stats()
	stats.PeersConnected = len(records)

	return domain.StreamingSessionView{
		Pipeline: s.pipeline.State(),
		Peers:    peers,
		Stats:    stats,
	}
}

// controlHolderLocked returns the earliest-connected peer. Caller must
// hold at least the read lock.
func (s *SessionService) controlHolderLocked() *domain.PeerRecord {
	var holder *domain.PeerRecord
	for _, rec := range s.peers {
		if holder == nil || rec.ConnectedAt.Before(holder.ConnectedAt) {
			holder = rec
		}
	}
	return holder
}

func (s *SessionService) policy() domain.PeerPolicy {
	return domain.PeerPolicy(s.store.PeerManagement())
}

// enqueueLocked posts a lifecycle transition. Sends happen under the
// registry lock, so channel order matches registry order. Caller must
// hold the write lock.
func (s *SessionService) enqueueLocked(ev lifecycleEvent) {
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Errorw("lifecycle queue full, dropping transition", "kind", ev.kind)
	}
}

func (s *SessionService) runLifecycle(ctx context.Context) {
	defer s.workerWG.Done()
	for ev := range s.events {
		switch ev.kind {
		case eventFirstJoined:
			s.logger.Infow("first peer joined, ensuring pipeline", "host", ev.host)
			s.pipeline.EnsurePlaying(ctx, ev.host)
		case eventLastLeft:
			s.logger.Infow("last peer left, stopping pipeline")
			s.pipeline.Stop(ctx)
		}
	}
}

// hostOf strips the port from a host:port address. Addresses without a
// port pass through unchanged.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

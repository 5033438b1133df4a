package services

import (
	"sync"

	"playcast/internal/core/domain"
)

// MetricsService keeps the running session counters behind the admin
// API. It is the in-process view; the Prometheus collector is wired
// separately at the transport edges.
type MetricsService struct {
	mu sync.RWMutex

	totalJoins        uint64
	totalLeaves       uint64
	framesRelayed     uint64
	commandsApplied   uint64
	commandsRejected  uint64
	actuationFailures uint64
}

func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

func (m *MetricsService) RecordJoin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalJoins++
}

func (m *MetricsService) RecordLeave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalLeaves++
}

// RecordFramesRelayed counts delivered frame copies, one per receiving
// peer.
func (m *MetricsService) RecordFramesRelayed(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesRelayed += uint64(n)
}

func (m *MetricsService) RecordCommandApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandsApplied++
}

func (m *MetricsService) RecordCommandRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandsRejected++
}

// RecordActuationFailure counts commands that decoded fine but could
// not be driven into the OS or the virtual controller.
func (m *MetricsService) RecordActuationFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actuationFailures++
}

// Stats returns a snapshot of the counters. PeersConnected is owned by
// the session registry and left zero here.
func (m *MetricsService) Stats() domain.SessionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.SessionStats{
		TotalJoins:        m.totalJoins,
		TotalLeaves:       m.totalLeaves,
		FramesRelayed:     m.framesRelayed,
		CommandsApplied:   m.commandsApplied,
		CommandsRejected:  m.commandsRejected,
		ActuationFailures: m.actuationFailures,
	}
}

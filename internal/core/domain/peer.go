package domain

import "time"

type SessionID string

// PeerRecord is one connected signaling peer. The remote address is
// the registry key; the queue carries its outbound frames.
type PeerRecord struct {
	Address     string
	SessionID   SessionID
	ConnectedAt time.Time
	Queue       *FrameQueue
}

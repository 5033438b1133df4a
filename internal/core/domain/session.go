package domain

import "time"

type PipelineState string

const (
	PipelineNull    PipelineState = "null"
	PipelinePlaying PipelineState = "playing"
)

// PeerPolicy controls how many viewers may join and which of them may
// inject input.
type PeerPolicy string

const (
	PolicySinglePeer      PeerPolicy = "SinglePeer"
	PolicySingleControl   PeerPolicy = "MultiplePeersSingleControl"
	PolicyMultipleControl PeerPolicy = "MultiplePeersMultipleControl"
)

type SessionStats struct {
	PeersConnected    int    `json:"peers_connected"`
	TotalJoins        uint64 `json:"total_joins"`
	TotalLeaves       uint64 `json:"total_leaves"`
	FramesRelayed     uint64 `json:"frames_relayed"`
	CommandsApplied   uint64 `json:"commands_applied"`
	CommandsRejected  uint64 `json:"commands_rejected"`
	ActuationFailures uint64 `json:"actuation_failures"`
}

type PeerView struct {
	Address      string    `json:"address"`
	SessionID    SessionID `json:"session_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	Uptime       string    `json:"uptime"`
	QueuedFrames int       `json:"queued_frames"`
	HasControl   bool      `json:"has_control"`
}

// StreamingSessionView is the admin read model: pipeline state plus
// the peer list ordered by connect time.
type StreamingSessionView struct {
	Pipeline PipelineState `json:"pipeline"`
	Peers    []PeerView    `json:"peers"`
	Stats    SessionStats  `json:"stats"`
}

package domain

import "errors"

var (
	ErrMalformedPacket = errors.New("malformed input packet")
	ErrUnknownCommand  = errors.New("unknown command discriminant")
	ErrNotInput        = errors.New("not an input message")
	ErrPeerNotFound    = errors.New("peer not found")
	ErrPeerLimit       = errors.New("peer limit reached")
	ErrQueueClosed     = errors.New("frame queue closed")
)

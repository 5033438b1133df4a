package domain

import "sync"

// Frame is one relayed signaling message. Type carries the WebSocket
// message type so text and binary frames survive the relay unchanged.
type Frame struct {
	Type int
	Data []byte
}

// FrameQueue is the unbounded outbound queue of one signaling peer.
// Producers never block; the peer's write pump drains it.
type FrameQueue struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
	notify chan struct{}
}

// NewFrameQueue creates an open frame queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{
		notify: make(chan struct{}, 1),
	}
}

// Push appends a frame. Returns ErrQueueClosed after Close.
func (q *FrameQueue) Push(f Frame) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	q.wake()
	return nil
}

// PopAll removes and returns all queued frames. The second result is
// false once the queue has been closed; frames queued before the close
// are still delivered on that final call, so the consumer writes them
// out and then terminates.
func (q *FrameQueue) PopAll() ([]Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	frames := q.frames
	q.frames = nil
	return frames, !q.closed
}

// Wait returns a channel that receives when frames arrive or the
// queue closes. One receive may cover several pushes; callers drain
// with PopAll.
func (q *FrameQueue) Wait() <-chan struct{} {
	return q.notify
}

// Close marks the queue closed and wakes the consumer. Frames already
// queued remain poppable.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

// Closed reports whether the queue has been closed.
func (q *FrameQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *FrameQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

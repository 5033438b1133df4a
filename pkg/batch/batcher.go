package batch

import (
	"context"
	"sync"
	"time"
)

// Operation is one queued unit of work.
type Operation interface {
	Execute(ctx context.Context) error
}

// Processor receives drained batches.
type Processor interface {
	ProcessBatch(ctx context.Context, operations []Operation) error
}

// Batcher queues operations and hands them to a Processor once a size
// or age threshold is reached. All flushing happens on one goroutine,
// so the Processor never sees concurrent batches.
type Batcher struct {
	size   int
	maxAge time.Duration
	proc   Processor

	mu    sync.Mutex
	queue []Operation

	kick chan struct{}
	quit chan struct{}
	done chan struct{}
}

// NewBatcher starts a batcher that flushes after size operations or
// maxAge, whichever comes first.
func NewBatcher(size int, maxAge time.Duration, proc Processor) *Batcher {
	if size <= 0 {
		size = 1
	}
	if maxAge <= 0 {
		maxAge = time.Second
	}

	b := &Batcher{
		size:   size,
		maxAge: maxAge,
		proc:   proc,
		queue:  make([]Operation, 0, size),
		kick:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go b.loop()
	return b
}

// Add queues op. Reaching the size threshold nudges the flush
// goroutine without blocking the caller.
func (b *Batcher) Add(op Operation) {
	b.mu.Lock()
	b.queue = append(b.queue, op)
	full := len(b.queue) >= b.size
	b.mu.Unlock()

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
}

// drain swaps out the queue under the lock.
func (b *Batcher) drain() []Operation {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return nil
	}
	out := b.queue
	b.queue = make([]Operation, 0, b.size)
	return out
}

// Flush synchronously processes everything queued so far.
func (b *Batcher) Flush(ctx context.Context) error {
	ops := b.drain()
	if len(ops) == 0 {
		return nil
	}
	return b.proc.ProcessBatch(ctx, ops)
}

func (b *Batcher) loop() {
	defer close(b.done)

	ticker := time.NewTicker(b.maxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-b.kick:
		case <-b.quit:
			_ = b.Flush(context.Background())
			return
		}
		_ = b.Flush(context.Background())
	}
}

// Stop flushes whatever is queued and ends the flush goroutine.
func (b *Batcher) Stop() {
	close(b.quit)
	<-b.done
}

// Pending returns the number of queued operations.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

package stream

import (
	"context"
	"sync"
)

// Queue is the ordered handoff between one synthesis job (sole producer) and
// one HTTP bridge (sole consumer). It is bounded: a full queue blocks the
// producer, which caps memory when the network consumer is slow. The closed
// channel is the end-of-stream sentinel and is delivered exactly once.
type Queue struct {
	ch        chan []byte
	abandoned chan struct{}

	closeOnce   sync.Once
	abandonOnce sync.Once
}

const defaultQueueDepth = 64

func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	return &Queue{
		ch:        make(chan []byte, depth),
		abandoned: make(chan struct{}),
	}
}

// Push hands a chunk to the consumer, blocking while the queue is full. After
// the consumer abandons the queue, pushes become silent drops so the producer
// lifecycle is unaffected by a disconnect. Push must not be called after Close.
func (q *Queue) Push(ctx context.Context, chunk []byte) error {
	select {
	case <-q.abandoned:
		return nil
	default:
	}
	select {
	case q.ch <- chunk:
		return nil
	case <-q.abandoned:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the stream. Safe to call multiple times; only the first
// call closes the channel.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// Abandon is called by the consumer when it stops reading (disconnect, write
// failure). The producer keeps running; its pushes are discarded.
func (q *Queue) Abandon() {
	q.abandonOnce.Do(func() { close(q.abandoned) })
}

// Chunks exposes the consumer side. The channel yields chunks in push order
// and is closed when the stream ends.
func (q *Queue) Chunks() <-chan []byte {
	return q.ch
}

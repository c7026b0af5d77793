package stream

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestQueuePreservesOrder(t *testing.T) {
	q := NewQueue(4)
	pushed := [][]byte{[]byte("one"), []byte("two"), []byte("three")}

	go func() {
		for _, chunk := range pushed {
			if err := q.Push(context.Background(), chunk); err != nil {
				t.Errorf("push: %v", err)
			}
		}
		q.Close()
	}()

	var got [][]byte
	for chunk := range q.Chunks() {
		got = append(got, chunk)
	}
	if len(got) != len(pushed) {
		t.Fatalf("expected %d chunks, got %d", len(pushed), len(got))
	}
	for i := range pushed {
		if !bytes.Equal(got[i], pushed[i]) {
			t.Fatalf("chunk %d out of order: got %q want %q", i, got[i], pushed[i])
		}
	}
}

func TestQueueEmptyStream(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	if _, ok := <-q.Chunks(); ok {
		t.Fatal("expected closed channel with no chunks")
	}
}

func TestQueueAbandonUnblocksProducer(t *testing.T) {
	q := NewQueue(1)
	if err := q.Push(context.Background(), []byte("fill")); err != nil {
		t.Fatalf("push: %v", err)
	}

	done := make(chan struct{})
	go func() {
		// Queue is full; this push must not block once the consumer abandons.
		_ = q.Push(context.Background(), []byte("blocked"))
		_ = q.Push(context.Background(), []byte("dropped"))
		close(done)
	}()

	q.Abandon()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer still blocked after abandon")
	}
	q.Close()
}

func TestQueuePushHonorsContext(t *testing.T) {
	q := NewQueue(1)
	if err := q.Push(context.Background(), []byte("fill")); err != nil {
		t.Fatalf("push: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Push(ctx, []byte("late")); err == nil {
		t.Fatal("expected context error on full queue")
	}
}

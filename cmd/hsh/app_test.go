package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/haricheung/hadron/internal/types"
)

// ── waitDrained ──────────────────────────────────────────────────────────────

func TestWaitDrained_EmptyReturnsAtOnce(t *testing.T) {
	ch := make(chan types.Message, 4)
	done := make(chan struct{})
	go func() {
		waitDrained(context.Background(), []<-chan types.Message{ch}, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waitDrained blocked on empty channels")
	}
}

func TestWaitDrained_WaitsForConsumer(t *testing.T) {
	ch := make(chan types.Message, 8)
	for i := 0; i < 8; i++ {
		ch <- types.Message{Type: types.MsgCollapse}
	}
	go func() {
		for range 8 {
			time.Sleep(time.Millisecond)
			<-ch
		}
	}()

	waitDrained(context.Background(), []<-chan types.Message{ch}, time.Millisecond)
	assert.Zero(t, len(ch))
}

func TestWaitDrained_StopsOnCancel(t *testing.T) {
	ch := make(chan types.Message, 1)
	ch <- types.Message{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	waitDrained(ctx, []<-chan types.Message{ch}, time.Millisecond)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, len(ch), "nobody consumed, so the message is still there")
}

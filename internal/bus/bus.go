package bus

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haricheung/hadron/internal/types"
)

const (
	subscriberBufSize = 256
	tapBufSize        = 1024
)

// Bus is the observable event bus. The engine publishes snapshots through it;
// the journal, metrics and shell observe them.
// The tap channel receives a copy of every message published.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[types.MessageType][]chan types.Message
	tapCh       chan types.Message
	closed      bool
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[types.MessageType][]chan types.Message),
		tapCh:       make(chan types.Message, tapBufSize),
	}
}

// Publish fans out msg to all subscribers of msg.Type and to the tap channel.
// Non-blocking: if a subscriber's channel is full, the message is dropped with a warning.
// Missing ID and Timestamp are filled in. Publishing after Close is a no-op.
func (b *Bus) Publish(msg types.Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subscribers[msg.Type] {
		select {
		case ch <- msg:
		default:
			log.Printf("[BUS] WARNING: subscriber channel full for type=%s from=%s — message dropped", msg.Type, msg.From)
		}
	}

	// Non-blocking so a slow tap reader never stalls the engine.
	select {
	case b.tapCh <- msg:
	default:
		log.Printf("[BUS] WARNING: tap channel full — message dropped type=%s", msg.Type)
	}
}

// Subscribe returns a receive-only channel that delivers messages of the given types.
// Each call creates a new independent subscriber channel shared by all listed types.
func (b *Bus) Subscribe(ts ...types.MessageType) <-chan types.Message {
	ch := make(chan types.Message, subscriberBufSize)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		for _, t := range ts {
			b.subscribers[t] = append(b.subscribers[t], ch)
		}
	}
	b.mu.Unlock()
	return ch
}

// Tap returns the read-only tap channel.
// Only one consumer should call this; calling it multiple times returns the same channel.
func (b *Bus) Tap() <-chan types.Message {
	return b.tapCh
}

// Close closes every subscriber channel and the tap so observers drain and exit.
// Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	done := make(map[chan types.Message]bool)
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			if !done[ch] {
				done[ch] = true
				close(ch)
			}
		}
	}
	close(b.tapCh)
}

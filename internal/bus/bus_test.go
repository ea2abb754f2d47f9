package bus

import (
	"testing"

	"github.com/haricheung/hadron/internal/types"
)

func TestPublish_FansOutToSubscribersAndTap(t *testing.T) {
	b := New()
	a := b.Subscribe(types.MsgCollapse)
	c := b.Subscribe(types.MsgCollapse)
	other := b.Subscribe(types.MsgBlackHoles)

	b.Publish(types.Message{From: types.SourceCycle, Type: types.MsgCollapse, Payload: types.CollapseResult{Cycle: 1}})

	for name, ch := range map[string]<-chan types.Message{"a": a, "c": c} {
		select {
		case msg := <-ch:
			if msg.ID == "" || msg.Timestamp.IsZero() {
				t.Errorf("subscriber %s: expected ID and timestamp filled in, got %+v", name, msg)
			}
		default:
			t.Errorf("subscriber %s received nothing", name)
		}
	}
	select {
	case msg := <-other:
		t.Errorf("unrelated subscriber received %s", msg.Type)
	default:
	}
	select {
	case <-b.Tap():
	default:
		t.Error("tap received nothing")
	}
}

func TestPublish_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	b := New()
	ch := b.Subscribe(types.MsgInput)
	for i := 0; i < subscriberBufSize+10; i++ {
		b.Publish(types.Message{Type: types.MsgInput})
	}
	if len(ch) != subscriberBufSize {
		t.Errorf("expected full buffer of %d, got %d", subscriberBufSize, len(ch))
	}
}

func TestSubscribe_MultipleTypesShareOneChannel(t *testing.T) {
	b := New()
	ch := b.Subscribe(types.MsgCollapse, types.MsgBlackHoles)
	b.Publish(types.Message{Type: types.MsgCollapse})
	b.Publish(types.Message{Type: types.MsgBlackHoles})
	b.Publish(types.Message{Type: types.MsgInput})
	if len(ch) != 2 {
		t.Errorf("expected 2 messages on the shared channel, got %d", len(ch))
	}
	b.Close() // must not double-close the shared channel
}

func TestClose_ClosesChannelsAndIgnoresLatePublish(t *testing.T) {
	b := New()
	ch := b.Subscribe(types.MsgCollapse)
	b.Close()
	b.Close()
	b.Publish(types.Message{Type: types.MsgCollapse})
	if _, ok := <-ch; ok {
		t.Error("expected closed subscriber channel")
	}
	if _, ok := <-b.Tap(); ok {
		t.Error("expected closed tap channel")
	}
	late := b.Subscribe(types.MsgCollapse)
	if _, ok := <-late; ok {
		t.Error("subscribing after Close should return a closed channel")
	}
}

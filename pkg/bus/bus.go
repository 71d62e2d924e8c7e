package bus

import (
	"sync"
	"sync/atomic"

	"github.com/harunnryd/atena/pkg/events"
)

// Bus is an in-process publish/subscribe channel for conversation events.
// Publish never blocks; slow subscribers drop events and the drop count is
// exposed for observability.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]chan events.Event
	next    int
	buffer  int
	dropped int64
	closed  bool
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[int]chan events.Event),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes the
// subscription and closes its channel.
func (b *Bus) Subscribe() (<-chan events.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan events.Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *Bus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			atomic.AddInt64(&b.dropped, 1)
		}
	}
}

func (b *Bus) Dropped() int64 {
	return atomic.LoadInt64(&b.dropped)
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

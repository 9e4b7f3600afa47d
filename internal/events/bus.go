// Package events provides per-debate publish/subscribe fan-out with
// debounced, coalesced delivery to observers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Type identifies an event kind. These names are part of the core contract;
// transports deliver them as-is.
type Type string

const (
	EventConnected   Type = "connected"
	EventRoundStart  Type = "round_start"
	EventAgentStart  Type = "agent_start"
	EventToken       Type = "token"
	EventAgentEnd    Type = "agent_end"
	EventScoreUpdate Type = "score_update"
	EventRoundEnd    Type = "round_end"
	EventDebateEnd   Type = "debate_end"
	EventError       Type = "error"
)

// Event is a single debate event.
type Event struct {
	ID        string    `json:"id"`
	DebateID  string    `json:"debate_id"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds an event with a fresh ID and timestamp.
func New(debateID string, eventType Type, payload any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		DebateID:  debateID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Metrics tracks bus delivery statistics.
type Metrics struct {
	EventsPublished   int64
	BatchesDelivered  int64
	BatchesDropped    int64
	SubscribersActive int64
}

type subscriber struct {
	id string
	ch chan []*Event
}

type subReq struct {
	sub   *subscriber
	ready chan struct{}
}

// channel is the buffering actor for one debate. All subscriber-set and
// pending-buffer mutation happens on its goroutine; the flush timer coalesces
// bursts into one batch per debounce window.
type channel struct {
	debateID string
	debounce time.Duration

	events chan *Event
	subs   chan subReq
	unsubs chan string
	done   chan struct{}
	closed sync.Once

	metrics *Metrics
}

func newChannel(debateID string, debounce time.Duration, metrics *Metrics) *channel {
	c := &channel{
		debateID: debateID,
		debounce: debounce,
		events:   make(chan *Event, 256),
		subs:     make(chan subReq),
		unsubs:   make(chan string),
		done:     make(chan struct{}),
		metrics:  metrics,
	}
	go c.run()
	return c
}

func (c *channel) run() {
	subs := make(map[string]*subscriber)
	var pending []*Event
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		for _, sub := range subs {
			select {
			case sub.ch <- batch:
				atomic.AddInt64(&c.metrics.BatchesDelivered, 1)
			default:
				// Slow consumer; drop the batch rather than stall the debate.
				atomic.AddInt64(&c.metrics.BatchesDropped, 1)
			}
		}
	}

	for {
		select {
		case e := <-c.events:
			pending = append(pending, e)
			if timerC == nil {
				timer = time.NewTimer(c.debounce)
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			flush()

		case req := <-c.subs:
			subs[req.sub.id] = req.sub
			atomic.AddInt64(&c.metrics.SubscribersActive, 1)
			// Acknowledge the join before any later batch.
			req.sub.ch <- []*Event{New(c.debateID, EventConnected, nil)}
			close(req.ready)

		case id := <-c.unsubs:
			if sub, ok := subs[id]; ok {
				delete(subs, id)
				close(sub.ch)
				atomic.AddInt64(&c.metrics.SubscribersActive, -1)
			}

		case <-c.done:
			if timer != nil {
				timer.Stop()
			}
			flush()
			for _, sub := range subs {
				close(sub.ch)
				atomic.AddInt64(&c.metrics.SubscribersActive, -1)
			}
			return
		}
	}
}

func (c *channel) close() {
	c.closed.Do(func() { close(c.done) })
}

// Bus fans debate events out to per-debate subscriber sets. Distinct debates
// are fully independent channels.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]*channel
	debounce time.Duration
	grace    time.Duration
	closed   bool
	metrics  Metrics
}

// NewBus creates a bus. debounce is the coalescing window; grace is how long
// a released debate channel lingers before teardown.
func NewBus(debounce, grace time.Duration) *Bus {
	if debounce <= 0 {
		debounce = 30 * time.Millisecond
	}
	if grace < 0 {
		grace = 0
	}
	return &Bus{
		channels: make(map[string]*channel),
		debounce: debounce,
		grace:    grace,
	}
}

func (b *Bus) channelFor(debateID string) *channel {
	b.mu.RLock()
	c, ok := b.channels[debateID]
	closed := b.closed
	b.mu.RUnlock()
	if ok || closed {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if c, ok := b.channels[debateID]; ok {
		return c
	}
	c = newChannel(debateID, b.debounce, &b.metrics)
	b.channels[debateID] = c
	return c
}

// Subscribe attaches a listener to a debate's event stream and returns the
// batch channel plus an unsubscribe function. The first batch is a connected
// acknowledgment; events broadcast before the subscription are not replayed.
func (b *Bus) Subscribe(debateID string) (<-chan []*Event, func()) {
	c := b.channelFor(debateID)
	if c == nil {
		ch := make(chan []*Event)
		close(ch)
		return ch, func() {}
	}

	sub := &subscriber{
		id: uuid.New().String(),
		ch: make(chan []*Event, 64),
	}
	ready := make(chan struct{})
	select {
	case c.subs <- subReq{sub: sub, ready: ready}:
		<-ready
	case <-c.done:
		close(sub.ch)
		return sub.ch, func() {}
	}

	unsubscribe := func() {
		select {
		case c.unsubs <- sub.id:
		case <-c.done:
		}
	}
	return sub.ch, unsubscribe
}

// Broadcast queues an event for the debate's subscribers. Delivery is
// at-most-once, in order, coalesced within the debounce window.
func (b *Bus) Broadcast(debateID string, event *Event) {
	c := b.channelFor(debateID)
	if c == nil {
		return
	}
	atomic.AddInt64(&b.metrics.EventsPublished, 1)
	select {
	case c.events <- event:
	case <-c.done:
	}
}

// Release schedules teardown of a debate's channel after the grace period.
// Called once the debate reaches a terminal state.
func (b *Bus) Release(debateID string) {
	time.AfterFunc(b.grace, func() {
		b.mu.Lock()
		c, ok := b.channels[debateID]
		if ok {
			delete(b.channels, debateID)
		}
		b.mu.Unlock()
		if ok {
			c.close()
		}
	})
}

// Metrics returns a snapshot of delivery counters.
func (b *Bus) Metrics() Metrics {
	return Metrics{
		EventsPublished:   atomic.LoadInt64(&b.metrics.EventsPublished),
		BatchesDelivered:  atomic.LoadInt64(&b.metrics.BatchesDelivered),
		BatchesDropped:    atomic.LoadInt64(&b.metrics.BatchesDropped),
		SubscribersActive: atomic.LoadInt64(&b.metrics.SubscribersActive),
	}
}

// SubscriberCount returns the number of active subscribers across all debates.
func (b *Bus) SubscriberCount() int {
	return int(atomic.LoadInt64(&b.metrics.SubscribersActive))
}

// Close tears down every channel immediately.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	channels := b.channels
	b.channels = make(map[string]*channel)
	b.mu.Unlock()

	for _, c := range channels {
		c.close()
	}
}

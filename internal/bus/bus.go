// Package bus is the in-process pub/sub that fans store-change events out to
// WebSocket connections and the command-center aggregator.
//
// Each subscriber owns a bounded queue. Publishing never blocks: when a
// queue is full the oldest event is dropped and a backpressure counter
// increments — clients are expected to resync on reconnect.
package bus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// DefaultQueueDepth bounds a subscriber queue when no depth is configured.
const DefaultQueueDepth = 256

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_bus_events_published_total",
		Help: "Events published to the bus by type.",
	}, []string{"type"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_bus_dropped_events_total",
		Help: "Events dropped due to a full subscriber queue.",
	}, []string{"subscriber"})
)

// Filter selects which events a subscriber receives. A nil filter means all.
type Filter func(models.Event) bool

// ProjectFilter matches events for one project plus fleet-level events.
func ProjectFilter(slug string) Filter {
	return func(e models.Event) bool {
		return e.Project == "" || e.Project == slug
	}
}

// Subscriber is one bounded event queue.
type Subscriber struct {
	name   string
	filter Filter
	ch     chan models.Event

	mu     sync.Mutex
	closed bool
}

// Events returns the subscriber's receive channel.
func (s *Subscriber) Events() <-chan models.Event { return s.ch }

// Bus is the shared event fan-out.
type Bus struct {
	depth int

	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// New creates a bus with the given per-subscriber queue depth.
func New(queueDepth int) *Bus {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Bus{depth: queueDepth, subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a named subscriber. name is a metrics label, not a key:
// two connections may share one.
func (b *Bus) Subscribe(name string, filter Filter) *Subscriber {
	sub := &Subscriber{name: name, filter: filter, ch: make(chan models.Event, b.depth)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Idempotent, and
// never disturbs other subscribers.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	_, present := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	sub.mu.Lock()
	if present && !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.mu.Unlock()
}

// Publish delivers e to every matching subscriber. Events published on the
// bus are totally ordered: delivery happens under the bus lock, so all
// subscribers observe events for a given document in commit order.
func (b *Bus) Publish(e models.Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	publishedTotal.WithLabelValues(string(e.Type)).Inc()

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// Queue full: drop the oldest event, then enqueue.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- e:
			default:
			}
			droppedTotal.WithLabelValues(sub.name).Inc()
			log.Warn().Str("subscriber", sub.name).Str("type", string(e.Type)).Msg("bus backpressure: dropped oldest event")
		}
	}
}

// Close unsubscribes everyone.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*Subscriber]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		sub.mu.Unlock()
	}
}

// Package inspector holds a fixed-capacity ring buffer of pipeline trace
// events and fans each one out to live subscribers, mirroring the
// buffered-channel-plus-background-drain shape the security audit logger
// uses for its own event stream.
package inspector

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Config tunes the inspector's ring capacity and subscriber fan-out.
type Config struct {
	RingCapacity      int `yaml:"ring_capacity"`       // default 1000
	SubscriberBufSize int `yaml:"subscriber_buf_size"` // default 32
}

// Inspector records trace events into a bounded ring buffer and publishes
// each one to any active subscriber channel. Publication never blocks the
// caller: a full subscriber channel simply misses the event.
type Inspector struct {
	config Config
	logger *logrus.Logger

	mu   sync.Mutex
	ring []types.TraceEvent
	next int
	full bool

	subMu       sync.Mutex
	subscribers map[int]chan types.TraceEvent
	nextSubID   int
}

// New builds an Inspector.
func New(config Config, logger *logrus.Logger) *Inspector {
	if config.RingCapacity == 0 {
		config.RingCapacity = 1000
	}
	if config.SubscriberBufSize == 0 {
		config.SubscriberBufSize = 32
	}
	return &Inspector{
		config:      config,
		logger:      logger,
		ring:        make([]types.TraceEvent, config.RingCapacity),
		subscribers: make(map[int]chan types.TraceEvent),
	}
}

// Record appends a trace event at the given pipeline stage and publishes
// it to current subscribers.
func (i *Inspector) Record(requestID, stage string, data map[string]interface{}) {
	event := types.TraceEvent{
		RequestID: requestID,
		Timestamp: time.Now(),
		Stage:     stage,
		Data:      data,
	}

	i.mu.Lock()
	i.ring[i.next] = event
	i.next = (i.next + 1) % i.config.RingCapacity
	if i.next == 0 {
		i.full = true
	}
	i.mu.Unlock()

	i.publish(event)
}

func (i *Inspector) publish(event types.TraceEvent) {
	i.subMu.Lock()
	defer i.subMu.Unlock()
	for id, ch := range i.subscribers {
		select {
		case ch <- event:
		default:
			i.logger.WithField("subscriber_id", id).Debug("trace subscriber buffer full, dropping event")
		}
	}
}

// Subscribe registers a new subscriber and returns its channel and an
// unsubscribe function. Callers must call unsubscribe when done to free
// the channel.
func (i *Inspector) Subscribe() (<-chan types.TraceEvent, func()) {
	i.subMu.Lock()
	defer i.subMu.Unlock()

	id := i.nextSubID
	i.nextSubID++
	ch := make(chan types.TraceEvent, i.config.SubscriberBufSize)
	i.subscribers[id] = ch

	unsubscribe := func() {
		i.subMu.Lock()
		defer i.subMu.Unlock()
		if existing, ok := i.subscribers[id]; ok {
			delete(i.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Recent returns up to limit of the most recently recorded events, oldest
// first. limit <= 0 returns everything currently retained.
func (i *Inspector) Recent(limit int) []types.TraceEvent {
	i.mu.Lock()
	defer i.mu.Unlock()

	var ordered []types.TraceEvent
	if !i.full {
		ordered = append(ordered, i.ring[:i.next]...)
	} else {
		ordered = append(ordered, i.ring[i.next:]...)
		ordered = append(ordered, i.ring[:i.next]...)
	}

	if limit <= 0 || limit >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-limit:]
}

// ForRequest filters Recent's full retained set down to one request ID.
func (i *Inspector) ForRequest(requestID string) []types.TraceEvent {
	all := i.Recent(0)
	var out []types.TraceEvent
	for _, e := range all {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out
}

package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/mfa-dashboard/pkg/logging"
)

// ErrClosed is returned after the publisher has been closed
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer is how many undelivered events a slow client may lag behind
const subscriberBuffer = 64

// TopicConfig configures replay for late subscribers
type TopicConfig struct {
	BufferSize int  // Events kept for replay (0 = none)
	ReplayAll  bool // Replay the whole buffer instead of only the latest event
}

type topicState struct {
	config  TopicConfig
	version int
	buffer  []Event
	subs    map[*sseSubscription]struct{}
}

// SSEPublisher is an in-memory Publisher whose events are written as Server-Sent Events
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates an empty publisher
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

// topic returns the state for name, creating it; caller holds mu
func (p *SSEPublisher) topic(name string) *topicState {
	t, ok := p.topics[name]
	if !ok {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets replay behaviour for a topic
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(name).config = config
}

// Subscribe registers a subscriber and queues any replayable events for it
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	t := p.topic(name)
	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberBuffer),
		finished:  make(chan struct{}),
		publisher: p,
	}
	t.subs[sub] = struct{}{}

	replay := t.buffer
	if !t.config.ReplayAll && len(replay) > 1 {
		replay = replay[len(replay)-1:]
	}
	// The channel is fresh and larger than any sane buffer, so these sends only drop
	// when BufferSize exceeds subscriberBuffer
	for _, ev := range replay {
		select {
		case sub.events <- ev:
		default:
			logging.Warn("replay buffer exceeds subscriber capacity", "topic", name)
		}
	}
	if len(replay) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", name, "count", len(replay))
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.finished:
		}
	}()

	return sub, nil
}

// Publish delivers data to every subscriber of topic without blocking on slow ones
func (p *SSEPublisher) Publish(name string, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topic(name)
	t.version++
	ev := Event{Topic: name, Type: eventType, Data: payload, Version: t.version}

	if t.config.BufferSize > 0 {
		t.buffer = append(t.buffer, ev)
		if over := len(t.buffer) - t.config.BufferSize; over > 0 {
			t.buffer = append([]Event(nil), t.buffer[over:]...)
		}
	}

	for sub := range t.subs {
		select {
		case sub.events <- ev:
		default:
			logging.Warn("subscriber lagging, dropping event", "topic", name, "version", ev.Version)
		}
	}
	return nil
}

// Close ends every subscription; further Publish and Subscribe calls fail
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			sub.finish()
		}
		t.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[sub.topic]; ok {
		if _, ok := t.subs[sub]; ok {
			delete(t.subs, sub)
			sub.finish()
		}
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher

	once     sync.Once
	finished chan struct{}
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

// Close unsubscribes and closes the events channel
func (s *sseSubscription) Close() error {
	s.publisher.unsubscribe(s)
	return nil
}

// finish closes the channels exactly once; caller holds the publisher lock
func (s *sseSubscription) finish() {
	s.once.Do(func() {
		close(s.events)
		close(s.finished)
	})
}

// WriteSSE writes an event as a "data:" frame
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, payload)
	return err
}

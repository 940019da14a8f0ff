package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	sseChannelBuffer = 16
	sseHeartbeat     = 30 * time.Second
)

// subscriber is a single SSE connection listening on one topic.
type subscriber struct {
	ch    chan string
	topic string
}

// Broadcaster fans out JSON events to SSE subscribers grouped by topic.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{})}
}

// Subscribe adds a subscriber for topic.
func (b *Broadcaster) Subscribe(topic string) *subscriber {
	s := &subscriber{
		ch:    make(chan string, sseChannelBuffer),
		topic: topic,
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes s and closes its channel. Safe to call twice.
func (b *Broadcaster) Unsubscribe(s *subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
	b.mu.Unlock()
}

// Publish marshals event and sends it to every subscriber of topic.
// Slow subscribers whose buffer is full miss the event.
func (b *Broadcaster) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if s.topic != topic {
			continue
		}
		select {
		case s.ch <- string(data):
		default:
		}
	}
	return nil
}

// Subscribers returns the number of subscribers on topic.
func (b *Broadcaster) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for s := range b.subs {
		if s.topic == topic {
			n++
		}
	}
	return n
}

// ServeSSE streams topic events to w until the client goes away, a write
// fails, or done returns true after a delivered event. onConnect runs once the
// subscription is live; its event is sent first, and stop ends the stream
// right after it. The server write timeout does not apply to the stream.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, topic string, onConnect func() (event any, stop bool), done func(msg string) bool) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	rc := http.NewResponseController(w)
	// Writers without deadline support return ErrNotSupported; nothing to clear.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s := b.Subscribe(topic)
	defer b.Unsubscribe(s)

	send := func(format string, args ...any) bool {
		if _, err := fmt.Fprintf(w, format, args...); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if onConnect != nil {
		event, stop := onConnect()
		if data, err := json.Marshal(event); err == nil {
			if !send("data: %s\n\n", data) {
				return
			}
		}
		if stop {
			return
		}
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-s.ch:
			if !ok || !send("data: %s\n\n", msg) {
				return
			}
			if done != nil && done(msg) {
				return
			}
		case <-ticker.C:
			if !send(": heartbeat\n\n") {
				return
			}
		}
	}
}

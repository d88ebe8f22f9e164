// Package stream fans successful watch events out to SSE subscribers so
// clients can refresh listings without polling.
package stream

import (
	"context"
	"sync"
	"time"
)

// WatchEvent describes one completed watch transaction.
type WatchEvent struct {
	VideoID   string    `json:"video_id"`
	Viewer    string    `json:"viewer"`
	Creator   string    `json:"creator"`
	Points    int64     `json:"points"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs watch events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan WatchEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan WatchEvent)}
}

// Subscribe registers a subscriber and returns a channel which will
// receive events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan WatchEvent {
	ch := make(chan WatchEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt WatchEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

package http

import (
	"log/slog"
	"sync"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// PassMessage is the SSE payload for one accepted event.
type PassMessage struct {
	Revision   int                      `json:"revision"`
	Trigger    *domain.InputEvent       `json:"trigger"`
	VisitOrder []string                 `json:"visit_order"`
	Changes    map[string]domain.Change `json:"changes"`
}

// touches reports whether any watched node was recomputed or changed in
// the pass.
func (m PassMessage) touches(watch map[string]bool) bool {
	for _, id := range m.VisitOrder {
		if watch[id] {
			return true
		}
	}
	for id := range m.Changes {
		if watch[id] {
			return true
		}
	}
	return false
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- PassMessage]struct{} // session key -> set of channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- PassMessage]struct{}),
		logger:      slog.Default(),
	}
}

func (sm *StreamManager) Subscribe(key string) (chan PassMessage, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan PassMessage, 10)
	if _, ok := sm.subscribers[key]; !ok {
		sm.subscribers[key] = make(map[chan<- PassMessage]struct{})
	}
	sm.subscribers[key][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[key]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, key)
			}
		}
	}
}

// Subscribers returns the number of open streams for key.
func (sm *StreamManager) Subscribers(key string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[key])
}

func (sm *StreamManager) Broadcast(key string, msg PassMessage) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[key] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_key", key)
		}
	}
}

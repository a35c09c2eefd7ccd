package config

import (
	"sync"
)

// EndpointStore holds the gateway-announced HTTP API endpoint. The master
// actor is the only writer, everyone else observes through Endpoint or the
// subscription channel, so readers never race a partial update.
type EndpointStore struct {
	mu       sync.RWMutex
	endpoint string
	subs     []chan string
}

func NewEndpointStore(initial string) *EndpointStore {
	return &EndpointStore{endpoint: initial}
}

func (s *EndpointStore) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

// Set stores a new endpoint and notifies subscribers. Returns false when
// the value did not change.
func (s *EndpointStore) Set(endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if endpoint == s.endpoint {
		return false
	}
	s.endpoint = endpoint
	for _, sub := range s.subs {
		select {
		case sub <- endpoint:
		default:
			// slow subscriber, it will pick up the value on the next change
		}
	}
	return true
}

// Subscribe returns a channel that receives each endpoint change.
func (s *EndpointStore) Subscribe() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan string, 1)
	s.subs = append(s.subs, ch)
	return ch
}

package amsserver

import (
	"sync"
)

// Request-scoped handoff buffer between the transport layer and the asset service.
// Multipart parsing sees the binary part before the metadata fields are fully parsed,
// so the transport stages the bytes here keyed by request ID, and the create/update
// handler pulls them out exactly once.
type StagingCache struct {
	mu     sync.Mutex
	staged map[string][]byte
}

func NewStagingCache() *StagingCache {
	return &StagingCache{
		staged: map[string][]byte{},
	}
}

func (s *StagingCache) Put(requestID string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged[requestID] = content
}

// removes the entry. second Pull for the same request ID misses.
func (s *StagingCache) Pull(requestID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, found := s.staged[requestID]
	delete(s.staged, requestID)

	return content, found
}

func (s *StagingCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.staged)
}

package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/straja-ai/aidetect/internal/result"
)

const (
	statusPending   = "pending"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// requestStore keeps recent analysis outcomes by request id.
type requestStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]requestEntry
}

type requestEntry struct {
	Status string         `json:"status"`
	Entry  string         `json:"entry"`
	Result *result.Result `json:"result,omitempty"`
	Code   string         `json:"code,omitempty"`

	expiresAt time.Time
}

func newRequestStore(ttl time.Duration) *requestStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &requestStore{
		ttl:  ttl,
		data: make(map[string]requestEntry),
	}
}

func (s *requestStore) Start(requestID, entry string) {
	if s == nil || requestID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	s.data[requestID] = requestEntry{
		Status:    statusPending,
		Entry:     entry,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Complete records res, or the error code when code is not empty.
func (s *requestStore) Complete(requestID string, res result.Result, code string) {
	if s == nil || requestID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	entry := s.data[requestID]
	entry.expiresAt = time.Now().Add(s.ttl)
	if code != "" {
		entry.Status, entry.Code = statusFailed, code
	} else {
		entry.Status, entry.Result = statusCompleted, &res
	}
	s.data[requestID] = entry
}

func (s *requestStore) Get(requestID string) (requestEntry, bool) {
	if s == nil || requestID == "" {
		return requestEntry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	entry, ok := s.data[requestID]
	if !ok {
		return requestEntry{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.data, requestID)
		return requestEntry{}, false
	}
	return entry, true
}

func (s *requestStore) cleanupLocked() {
	now := time.Now()
	for k, v := range s.data {
		if now.After(v.expiresAt) {
			delete(s.data, k)
		}
	}
}

func newRequestID() string {
	return uuid.NewString()
}

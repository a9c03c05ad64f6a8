package services

import (
	"sync"

	"github.com/iota-uz/accessdesk/modules/access/domain/events"
)

// TranscriptService keeps the per-recipient feed of composed
// notifications. It is an in-memory sink: the chat boundary polls it to
// render what "was sent" to each person.
type TranscriptService struct {
	mu      sync.RWMutex
	entries map[string][]events.Notification
}

func NewTranscriptService() *TranscriptService {
	return &TranscriptService{entries: make(map[string][]events.Notification)}
}

func (s *TranscriptService) Append(n events.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[n.RecipientID] = append(s.entries[n.RecipientID], n)
}

// For returns the notifications delivered to one recipient, oldest first.
func (s *TranscriptService) For(recipientID string) []events.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.entries[recipientID]
	out := make([]events.Notification, len(stored))
	copy(out, stored)
	return out
}

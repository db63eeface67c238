// Package memory holds the running conversation summary behind
// contract.SummaryStore. Every backend overwrites the summary on write and
// rejects stale writers with contract.ErrVersionConflict.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

func validateConversationID(conversationID string) (string, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return "", fmt.Errorf("%w: conversation id is empty", contractx.ErrValidation)
	}
	return id, nil
}

func versionConflict(conversationID string, expected, actual int64) error {
	return fmt.Errorf("%w: conversation=%s expected=%d actual=%d", contractx.ErrVersionConflict, conversationID, expected, actual)
}

// InMemoryStore keeps summaries in process memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]contractx.Summary
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{summaries: make(map[string]contractx.Summary)}
}

func (s *InMemoryStore) ReadSummary(ctx context.Context, conversationID string) (contractx.Summary, error) {
	id, err := validateConversationID(conversationID)
	if err != nil {
		return contractx.Summary{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries[id], nil
}

func (s *InMemoryStore) WriteSummary(ctx context.Context, conversationID string, text string, expectedVersion int64) (int64, error) {
	id, err := validateConversationID(conversationID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.summaries[id]
	if current.Version != expectedVersion {
		return 0, versionConflict(id, expectedVersion, current.Version)
	}
	next := contractx.Summary{Text: text, Version: current.Version + 1}
	s.summaries[id] = next
	return next.Version, nil
}

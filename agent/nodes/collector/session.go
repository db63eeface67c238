package collectornode

import (
	"context"
	"errors"
	"fmt"
	"time"

	statex "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/state"
)

// LoadOrCreateSession returns the stored session or a fresh one. The fresh
// session is not persisted here.
func LoadOrCreateSession(
	ctx context.Context,
	store statex.Store,
	conversationID string,
	now time.Time,
) (*statex.Session, error) {
	st, err := store.Load(ctx, conversationID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, err
	}
	return statex.NewSession(conversationID, now), nil
}

func ValidateAndSaveSession(
	ctx context.Context,
	store statex.Store,
	session *statex.Session,
	now time.Time,
) error {
	if session == nil {
		return statex.ErrNilSessionState
	}

	session.Touch(now)
	if err := session.Validate(); err != nil {
		return fmt.Errorf("session validation failed: %w", err)
	}
	return store.Save(ctx, session)
}

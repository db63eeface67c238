package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/feedback"
)

// Session is the persisted feedback progress of one conversation.
// Forms are created on first access for a reason and never removed.
type Session struct {
	ConversationID string                             `json:"conversation_id"`
	Forms          map[feedback.Reason]feedback.State `json:"forms,omitempty"`
	CreatedAt      time.Time                          `json:"created_at"`
	UpdatedAt      time.Time                          `json:"updated_at"`
}

var (
	ErrFormNotFound   = errors.New("feedback form not found")
	ErrFormReasonSkew = errors.New("form reason does not match its key")
)

func NewSession(conversationID string, now time.Time) *Session {
	return &Session{
		ConversationID: conversationID,
		Forms:          make(map[feedback.Reason]feedback.State, 2),
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// EnsureFormsMap makes sure s.Forms is initialized.
func (s *Session) EnsureFormsMap() {
	if s.Forms == nil {
		s.Forms = make(map[feedback.Reason]feedback.State, 2)
	}
}

// Form returns a copy of the stored state for reason.
func (s *Session) Form(reason feedback.Reason) (feedback.State, bool) {
	if s == nil || s.Forms == nil {
		return feedback.State{}, false
	}
	st, ok := s.Forms[reason]
	if !ok {
		return feedback.State{}, false
	}
	return st.Clone(), true
}

// FormOrNew returns the stored form or a fresh one. The second result
// reports whether the form was created by this call.
func (s *Session) FormOrNew(reason feedback.Reason) (feedback.State, bool) {
	if st, ok := s.Form(reason); ok {
		return st, false
	}
	return feedback.NewState(reason), true
}

func (s *Session) PutForm(st feedback.State) error {
	if s == nil {
		return errors.New("nil session")
	}
	if st.Reason == "" {
		return fmt.Errorf("%w: form reason is empty", ErrFormNotFound)
	}
	s.EnsureFormsMap()
	s.Forms[st.Reason] = st.Clone()
	return nil
}

func (s *Session) Validate() error {
	for reason, st := range s.Forms {
		if st.Reason != reason {
			return fmt.Errorf("%w: key=%s state=%s", ErrFormReasonSkew, reason, st.Reason)
		}
		if err := st.Validate(len(reason.Fields())); err != nil {
			return fmt.Errorf("form %s: %w", reason, err)
		}
	}
	return nil
}

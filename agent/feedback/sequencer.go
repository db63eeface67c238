package feedback

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

// CompleteHook runs after the final submission was delivered.
type CompleteHook func(ctx context.Context, reason Reason, formData map[string]string)

type Option func(*Sequencer)

func WithCompleteHook(hook CompleteHook) Option {
	return func(s *Sequencer) {
		s.onComplete = hook
	}
}

func WithSendOptions(opts contractx.SendOptions) Option {
	return func(s *Sequencer) {
		s.sendOpts = opts
	}
}

// Sequencer walks a reason's questions one at a time and emits one message per answer.
// It holds no per-conversation state; every operation maps a State to a new State.
type Sequencer struct {
	gateway    contractx.MessageGateway
	sendOpts   contractx.SendOptions
	onComplete CompleteHook
}

func NewSequencer(gateway contractx.MessageGateway, opts ...Option) (*Sequencer, error) {
	if gateway == nil {
		return nil, errors.New("message gateway is required")
	}
	s := &Sequencer{
		gateway:  gateway,
		sendOpts: contractx.SendOptions{StreamResponse: true},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Initialize returns a fresh state and the reason's fields.
// Unknown reasons get an empty field list rather than an error.
func (s *Sequencer) Initialize(reason Reason) (State, []Field) {
	return NewState(reason), reason.Fields()
}

// Signal carries the two external advance controls.
type Signal struct {
	Index    *int `json:"currentQuestionIndex,omitempty"`
	ShowNext bool `json:"showNextQuestion,omitempty"`
}

// ApplySignal applies an explicit index first; ShowNext only counts when the
// index did not move the pointer.
func ApplySignal(st State, sig Signal) (State, error) {
	if sig.Index != nil && *sig.Index != st.CurrentQuestionIndex {
		return AdvanceTo(st, sig.Index)
	}
	if sig.ShowNext {
		return AcknowledgeAdvance(st), nil
	}
	return st.Clone(), nil
}

// AdvanceTo overrides the current index. A nil or unchanged index is a no-op.
// A completed form is terminal. Overrides must point at a question, so the
// range is [0, fieldCount-1].
func AdvanceTo(st State, explicitIndex *int) (State, error) {
	out := st.Clone()
	if explicitIndex == nil || *explicitIndex == st.CurrentQuestionIndex {
		return out, nil
	}
	if st.IsComplete {
		return out, contractx.ErrFormComplete
	}
	fieldCount := len(st.Reason.Fields())
	if *explicitIndex < 0 || *explicitIndex >= fieldCount {
		return out, fmt.Errorf("%w: question index %d out of [0,%d)", contractx.ErrValidation, *explicitIndex, fieldCount)
	}
	out.CurrentQuestionIndex = *explicitIndex
	out.AwaitingNextQuestion = false
	return out, nil
}

func AcknowledgeAdvance(st State) State {
	out := st.Clone()
	if out.AwaitingNextQuestion {
		out.AwaitingNextQuestion = false
	}
	return out
}

// SubmitAnswer records one answer and sends the matching message.
// A failed send keeps the local transition; the returned state is always the
// post-transition state, so callers can tell "recorded" from "delivered".
func (s *Sequencer) SubmitAnswer(ctx context.Context, st State, fieldID string, value string) (State, OutgoingMessage, error) {
	fieldID = strings.TrimSpace(fieldID)
	if fieldID == "" {
		return st, OutgoingMessage{}, fmt.Errorf("%w: field id is required", contractx.ErrValidation)
	}
	if st.IsComplete {
		return st, OutgoingMessage{}, contractx.ErrFormComplete
	}
	fields, err := FieldsFor(st.Reason)
	if err != nil {
		return st, OutgoingMessage{}, err
	}
	idx := st.CurrentQuestionIndex
	if idx < 0 || idx >= len(fields) {
		return st, OutgoingMessage{}, fmt.Errorf("%w: no question at index %d", contractx.ErrValidation, idx)
	}

	next := st.Clone()
	next.FormData[fieldID] = value
	isLast := idx >= len(fields)-1

	var msg OutgoingMessage
	if isLast {
		msg, err = finalMessage(st.Reason, next.FormData)
		if err != nil {
			return st, OutgoingMessage{}, err
		}
	} else {
		msg = answerMessage(fields[idx], value)
	}
	if msg.IsBlank() {
		return st, OutgoingMessage{}, contractx.ErrEmptyMessage
	}

	recordAnswered(&next, idx)
	next.CurrentQuestionIndex = idx + 1
	if isLast {
		next.IsComplete = true
		next.AwaitingNextQuestion = false
		next.Submitted = false
	} else {
		next.AwaitingNextQuestion = true
	}

	if err := s.gateway.Send(ctx, msg.Text, s.sendOpts); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("reason", string(st.Reason)).
			Int("question_index", idx).
			Msg("feedback message send failed")
		return next, msg, fmt.Errorf("%w: send feedback message: %v", contractx.ErrUpstream, err)
	}

	if isLast {
		next.Submitted = true
		if s.onComplete != nil {
			s.onComplete(ctx, st.Reason, maps.Clone(next.FormData))
		}
	}
	return next, msg, nil
}

// recordAnswered keeps AnsweredQuestions strictly increasing.
// Re-answering an earlier question after an override does not add an entry.
func recordAnswered(st *State, idx int) {
	if last, ok := st.lastAnswered(); ok && idx <= last {
		return
	}
	st.AnsweredQuestions = append(st.AnsweredQuestions, idx)
}

func IsAnswered(st State, index int) bool {
	for _, idx := range st.AnsweredQuestions {
		if idx == index {
			return true
		}
	}
	return false
}

// CurrentField returns false once every question has been answered.
func CurrentField(st State, fields []Field) (Field, bool) {
	if st.CurrentQuestionIndex < 0 || st.CurrentQuestionIndex >= len(fields) {
		return Field{}, false
	}
	return fields[st.CurrentQuestionIndex], true
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/feedback"
	nodex "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/nodes/collector"
	statex "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/state"
)

const (
	OutcomeAnswered   = "answered"
	OutcomeCompleted  = "completed"
	OutcomeSendFailed = "send_failed"
	OutcomeRejected   = "rejected"
)

// Recorder receives one event per submission attempt.
type Recorder interface {
	FeedbackSubmitted(reason, outcome string)
}

type Option func(*Collector)

func WithRecorder(r Recorder) Option {
	return func(c *Collector) {
		if r != nil {
			c.recorder = r
		}
	}
}

// FormView is what the UI needs to render one reason's form.
type FormView struct {
	ConversationID string           `json:"conversationId"`
	Reason         feedback.Reason  `json:"reason"`
	Label          string           `json:"label"`
	Elaboration    string           `json:"elaboration"`
	Phase          feedback.Phase   `json:"phase"`
	State          feedback.State   `json:"state"`
	Fields         []feedback.Field `json:"fields"`
	CurrentField   *feedback.Field  `json:"currentField,omitempty"`
}

type SubmitResult struct {
	FormView
	Message feedback.OutgoingMessage `json:"message"`
}

// Collector persists feedback sequencer state per conversation. Operations on
// one conversation run one at a time.
type Collector struct {
	store     statex.Store
	sequencer *feedback.Sequencer
	recorder  Recorder
	locks     *keyedMutex
	now       func() time.Time
}

func New(store statex.Store, sequencer *feedback.Sequencer, opts ...Option) (*Collector, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if sequencer == nil {
		return nil, errors.New("feedback sequencer is required")
	}
	c := &Collector{
		store:     store,
		sequencer: sequencer,
		recorder:  noopRecorder{},
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func resolve(conversationID string, rawReason string) (string, feedback.Reason, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return "", "", fmt.Errorf("%w: conversation id is empty", contractx.ErrValidation)
	}
	reason, ok := feedback.ParseReason(rawReason)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", contractx.ErrUnknownReason, rawReason)
	}
	return id, reason, nil
}

// Open returns the form for reason, creating and persisting it on first access.
func (c *Collector) Open(ctx context.Context, conversationID string, rawReason string) (FormView, error) {
	id, reason, err := resolve(conversationID, rawReason)
	if err != nil {
		return FormView{}, err
	}
	unlock := c.locks.Lock(id)
	defer unlock()

	now := c.now()
	session, err := nodex.LoadOrCreateSession(ctx, c.store, id, now)
	if err != nil {
		return FormView{}, err
	}

	form, created := session.FormOrNew(reason)
	if created {
		form, _ = c.sequencer.Initialize(reason)
		if err := session.PutForm(form); err != nil {
			return FormView{}, err
		}
		if err := nodex.ValidateAndSaveSession(ctx, c.store, session, now); err != nil {
			return FormView{}, err
		}
		log.Ctx(ctx).Debug().
			Str("conversation_id", id).
			Str("reason", string(reason)).
			Msg("feedback form created")
	}
	return newFormView(id, form), nil
}

// Submit records one answer. When the gateway fails the new state is still
// saved and returned together with an error wrapping contract.ErrUpstream.
func (c *Collector) Submit(ctx context.Context, conversationID string, rawReason string, fieldID string, value string) (SubmitResult, error) {
	id, reason, err := resolve(conversationID, rawReason)
	if err != nil {
		return SubmitResult{}, err
	}
	unlock := c.locks.Lock(id)
	defer unlock()

	now := c.now()
	session, err := nodex.LoadOrCreateSession(ctx, c.store, id, now)
	if err != nil {
		return SubmitResult{}, err
	}
	form, _ := session.FormOrNew(reason)

	componentState, err := sonic.MarshalString(form)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("marshal component state: %w", err)
	}
	sendCtx := contractx.WithComponentState(contractx.WithConversationID(ctx, id), componentState)

	next, msg, submitErr := c.sequencer.SubmitAnswer(sendCtx, form, fieldID, value)
	if submitErr != nil && !errors.Is(submitErr, contractx.ErrUpstream) {
		c.recorder.FeedbackSubmitted(string(reason), OutcomeRejected)
		return SubmitResult{FormView: newFormView(id, form)}, submitErr
	}

	if err := session.PutForm(next); err != nil {
		return SubmitResult{}, err
	}
	if err := nodex.ValidateAndSaveSession(ctx, c.store, session, now); err != nil {
		return SubmitResult{}, err
	}

	outcome := OutcomeAnswered
	switch {
	case submitErr != nil:
		outcome = OutcomeSendFailed
	case next.Submitted:
		outcome = OutcomeCompleted
	}
	c.recorder.FeedbackSubmitted(string(reason), outcome)

	log.Ctx(ctx).Info().
		Str("conversation_id", id).
		Str("reason", string(reason)).
		Str("field_id", fieldID).
		Str("phase", string(next.Phase())).
		Str("outcome", outcome).
		Msg("feedback answer recorded")

	return SubmitResult{FormView: newFormView(id, next), Message: msg}, submitErr
}

// Advance applies the UI's advance signal to the stored form.
func (c *Collector) Advance(ctx context.Context, conversationID string, rawReason string, sig feedback.Signal) (FormView, error) {
	id, reason, err := resolve(conversationID, rawReason)
	if err != nil {
		return FormView{}, err
	}
	unlock := c.locks.Lock(id)
	defer unlock()

	now := c.now()
	session, err := nodex.LoadOrCreateSession(ctx, c.store, id, now)
	if err != nil {
		return FormView{}, err
	}
	form, _ := session.FormOrNew(reason)

	next, err := feedback.ApplySignal(form, sig)
	if err != nil {
		return newFormView(id, form), err
	}
	if err := session.PutForm(next); err != nil {
		return FormView{}, err
	}
	if err := nodex.ValidateAndSaveSession(ctx, c.store, session, now); err != nil {
		return FormView{}, err
	}
	return newFormView(id, next), nil
}

func newFormView(conversationID string, st feedback.State) FormView {
	fields := st.Reason.Fields()
	if fields == nil {
		fields = []feedback.Field{}
	}
	view := FormView{
		ConversationID: conversationID,
		Reason:         st.Reason,
		Phase:          st.Phase(),
		State:          st,
		Fields:         fields,
	}
	if info, ok := st.Reason.Info(); ok {
		view.Label = info.Label
		view.Elaboration = info.Elaboration
	}
	if field, ok := feedback.CurrentField(st, fields); ok {
		view.CurrentField = &field
	}
	return view
}

type noopRecorder struct{}

func (noopRecorder) FeedbackSubmitted(string, string) {}

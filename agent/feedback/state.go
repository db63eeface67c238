package feedback

import (
	"fmt"
	"maps"
	"slices"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

type Phase string

const (
	PhaseAwaitingAnswer        Phase = "awaiting_answer"
	PhaseAwaitingAdvanceSignal Phase = "awaiting_advance_signal"
	PhaseComplete              Phase = "complete"
)

// State is the progress of one reason's form within a conversation.
type State struct {
	Reason               Reason            `json:"reason"`
	FormData             map[string]string `json:"formData"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	AnsweredQuestions    []int             `json:"answeredQuestions"`
	IsComplete           bool              `json:"isComplete"`
	Submitted            bool              `json:"submitted"`
	AwaitingNextQuestion bool              `json:"awaitingNextQuestion"`
}

func NewState(reason Reason) State {
	return State{
		Reason:            reason,
		FormData:          map[string]string{},
		AnsweredQuestions: []int{},
	}
}

func (s State) Phase() Phase {
	switch {
	case s.IsComplete:
		return PhaseComplete
	case s.AwaitingNextQuestion:
		return PhaseAwaitingAdvanceSignal
	default:
		return PhaseAwaitingAnswer
	}
}

// Clone returns a deep copy so transitions never alias the caller's map or slice.
func (s State) Clone() State {
	out := s
	out.FormData = maps.Clone(s.FormData)
	if out.FormData == nil {
		out.FormData = map[string]string{}
	}
	out.AnsweredQuestions = slices.Clone(s.AnsweredQuestions)
	if out.AnsweredQuestions == nil {
		out.AnsweredQuestions = []int{}
	}
	return out
}

func (s State) lastAnswered() (int, bool) {
	if len(s.AnsweredQuestions) == 0 {
		return 0, false
	}
	return s.AnsweredQuestions[len(s.AnsweredQuestions)-1], true
}

// Validate checks the index bounds, the answered-list ordering and that a
// complete form sits at fieldCount.
func (s State) Validate(fieldCount int) error {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex > fieldCount {
		return fmt.Errorf("%w: currentQuestionIndex=%d out of [0,%d]", contractx.ErrValidation, s.CurrentQuestionIndex, fieldCount)
	}
	prev := -1
	for _, idx := range s.AnsweredQuestions {
		if idx <= prev {
			return fmt.Errorf("%w: answeredQuestions not strictly increasing at %d", contractx.ErrValidation, idx)
		}
		if idx >= fieldCount {
			return fmt.Errorf("%w: answered index %d >= field count %d", contractx.ErrValidation, idx, fieldCount)
		}
		prev = idx
	}
	if s.Submitted && !s.IsComplete {
		return fmt.Errorf("%w: submitted form must be complete", contractx.ErrValidation)
	}
	if s.IsComplete && s.CurrentQuestionIndex != fieldCount {
		return fmt.Errorf("%w: complete form must point past the last question, got index %d of %d", contractx.ErrValidation, s.CurrentQuestionIndex, fieldCount)
	}
	return nil
}

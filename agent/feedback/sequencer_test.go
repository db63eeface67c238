package feedback

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

type sentMessage struct {
	text string
	opts contractx.SendOptions
}

type fakeGateway struct {
	err  error
	sent []sentMessage
}

func (f *fakeGateway) Send(ctx context.Context, message string, opts contractx.SendOptions) error {
	f.sent = append(f.sent, sentMessage{text: message, opts: opts})
	return f.err
}

func newTestSequencer(t *testing.T, gw contractx.MessageGateway, opts ...Option) *Sequencer {
	t.Helper()
	seq, err := NewSequencer(gw, opts...)
	if err != nil {
		t.Fatalf("NewSequencer() error = %v", err)
	}
	return seq
}

func intPtr(v int) *int {
	return &v
}

func TestNewSequencerRequiresGateway(t *testing.T) {
	t.Parallel()

	if _, err := NewSequencer(nil); err == nil {
		t.Fatal("expected error for nil gateway")
	}
}

func TestInitializeKnownReasons(t *testing.T) {
	t.Parallel()

	seq := newTestSequencer(t, &fakeGateway{})
	for _, info := range Reasons() {
		st, fields := seq.Initialize(info.Reason)
		want := State{
			Reason:            info.Reason,
			FormData:          map[string]string{},
			AnsweredQuestions: []int{},
		}
		if !reflect.DeepEqual(st, want) {
			t.Fatalf("Initialize(%s) = %#v, want %#v", info.Reason, st, want)
		}
		if len(fields) != len(info.Fields) {
			t.Fatalf("Initialize(%s) fields = %d, want %d", info.Reason, len(fields), len(info.Fields))
		}
		if st.Phase() != PhaseAwaitingAnswer {
			t.Fatalf("Initialize(%s) phase = %s", info.Reason, st.Phase())
		}
	}
}

func TestInitializeUnknownReasonHasNoCurrentField(t *testing.T) {
	t.Parallel()

	seq := newTestSequencer(t, &fakeGateway{})
	st, fields := seq.Initialize(Reason("does-not-exist"))
	if len(fields) != 0 {
		t.Fatalf("expected no fields, got %d", len(fields))
	}
	if _, ok := CurrentField(st, fields); ok {
		t.Fatal("expected no current field for unknown reason")
	}

	_, _, err := seq.SubmitAnswer(context.Background(), st, "x", "y")
	if !errors.Is(err, contractx.ErrUnknownReason) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrUnknownReason", err)
	}
}

func TestSubmitAnswerTooExpensiveScenario(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	var completed map[string]string
	seq := newTestSequencer(t, gw, WithCompleteHook(func(ctx context.Context, reason Reason, data map[string]string) {
		completed = data
	}))
	st, fields := seq.Initialize(ReasonTooExpensive)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}

	st, msg, err := seq.SubmitAnswer(context.Background(), st, "fair-price", "10")
	if err != nil {
		t.Fatalf("SubmitAnswer(fair-price) error = %v", err)
	}
	if st.CurrentQuestionIndex != 1 || !st.AwaitingNextQuestion {
		t.Fatalf("unexpected state after first answer: %#v", st)
	}
	if !reflect.DeepEqual(st.AnsweredQuestions, []int{0}) {
		t.Fatalf("answeredQuestions = %v, want [0]", st.AnsweredQuestions)
	}
	if want := `Feedback submission: "What price would feel fair?": 10`; msg.Text != want {
		t.Fatalf("message = %q, want %q", msg.Text, want)
	}
	if st.IsComplete || st.Submitted {
		t.Fatalf("form must not be complete yet: %#v", st)
	}
	if st.Phase() != PhaseAwaitingAdvanceSignal {
		t.Fatalf("phase = %s, want %s", st.Phase(), PhaseAwaitingAdvanceSignal)
	}

	st = AcknowledgeAdvance(st)
	st, msg, err = seq.SubmitAnswer(context.Background(), st, "discount-change-mind", "yes")
	if err != nil {
		t.Fatalf("SubmitAnswer(discount-change-mind) error = %v", err)
	}
	if !st.IsComplete || !st.Submitted {
		t.Fatalf("expected complete and submitted, got %#v", st)
	}
	if !reflect.DeepEqual(st.AnsweredQuestions, []int{0, 1}) {
		t.Fatalf("answeredQuestions = %v, want [0 1]", st.AnsweredQuestions)
	}
	if !msg.Final {
		t.Fatal("expected final message")
	}
	if !strings.HasPrefix(msg.Text, "Feedback submission: too-expensive\n") {
		t.Fatalf("unexpected final message: %q", msg.Text)
	}
	for _, key := range []string{`"fair-price": "10"`, `"discount-change-mind": "yes"`} {
		if !strings.Contains(msg.Text, key) {
			t.Fatalf("final message %q missing %s", msg.Text, key)
		}
	}
	if len(gw.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(gw.sent))
	}
	if !gw.sent[0].opts.StreamResponse {
		t.Fatal("expected streamed sends by default")
	}
	if completed["fair-price"] != "10" || completed["discount-change-mind"] != "yes" {
		t.Fatalf("complete hook got %v", completed)
	}
	if st.Phase() != PhaseComplete {
		t.Fatalf("phase = %s, want %s", st.Phase(), PhaseComplete)
	}
}

func TestSubmitAnswerSequentialForAllReasons(t *testing.T) {
	t.Parallel()

	for _, info := range Reasons() {
		if len(info.Fields) == 0 {
			continue
		}
		seq := newTestSequencer(t, &fakeGateway{})
		st, fields := seq.Initialize(info.Reason)
		want := make([]int, 0, len(fields))
		for i, f := range fields {
			var err error
			st, _, err = seq.SubmitAnswer(context.Background(), st, f.ID, "answer")
			if err != nil {
				t.Fatalf("%s: SubmitAnswer(%d) error = %v", info.Reason, i, err)
			}
			want = append(want, i)
			if err := st.Validate(len(fields)); err != nil {
				t.Fatalf("%s: invalid state after %d: %v", info.Reason, i, err)
			}
			st = AcknowledgeAdvance(st)
		}
		if st.CurrentQuestionIndex != len(fields) {
			t.Fatalf("%s: index = %d, want %d", info.Reason, st.CurrentQuestionIndex, len(fields))
		}
		if !reflect.DeepEqual(st.AnsweredQuestions, want) {
			t.Fatalf("%s: answered = %v, want %v", info.Reason, st.AnsweredQuestions, want)
		}
		if !st.IsComplete {
			t.Fatalf("%s: expected complete", info.Reason)
		}
		if _, ok := CurrentField(st, fields); ok {
			t.Fatalf("%s: expected no current field after completion", info.Reason)
		}
	}
}

func TestSubmitAnswerSendFailureKeepsProgress(t *testing.T) {
	t.Parallel()

	sendErr := errors.New("thread unavailable")
	gw := &fakeGateway{err: sendErr}
	seq := newTestSequencer(t, gw)
	st, _ := seq.Initialize(ReasonTooExpensive)

	next, msg, err := seq.SubmitAnswer(context.Background(), st, "fair-price", "10")
	if !errors.Is(err, contractx.ErrUpstream) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrUpstream", err)
	}
	if msg.Text == "" {
		t.Fatal("expected the attempted message to be returned")
	}
	if next.CurrentQuestionIndex != 1 || !reflect.DeepEqual(next.AnsweredQuestions, []int{0}) {
		t.Fatalf("progress must be retained on send failure: %#v", next)
	}

	next, _, err = seq.SubmitAnswer(context.Background(), next, "discount-change-mind", "no")
	if !errors.Is(err, contractx.ErrUpstream) {
		t.Fatalf("SubmitAnswer(last) error = %v, want ErrUpstream", err)
	}
	if !next.IsComplete {
		t.Fatal("expected isComplete set before the send attempt")
	}
	if next.Submitted {
		t.Fatal("submitted must stay false when the final send fails")
	}
}

func TestSubmitAnswerDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	seq := newTestSequencer(t, &fakeGateway{})
	st, _ := seq.Initialize(ReasonBugsReliability)
	if _, _, err := seq.SubmitAnswer(context.Background(), st, "frustration-issue", "crashes"); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if len(st.FormData) != 0 || len(st.AnsweredQuestions) != 0 || st.CurrentQuestionIndex != 0 {
		t.Fatalf("input state was mutated: %#v", st)
	}
}

func TestSubmitAnswerRejectsCompletedForm(t *testing.T) {
	t.Parallel()

	seq := newTestSequencer(t, &fakeGateway{})
	st := NewState(ReasonPoorSupport)
	st.IsComplete = true

	_, _, err := seq.SubmitAnswer(context.Background(), st, "support-issue", "Response time")
	if !errors.Is(err, contractx.ErrFormComplete) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrFormComplete", err)
	}
}

func TestSubmitAnswerRejectsEmptyFieldID(t *testing.T) {
	t.Parallel()

	seq := newTestSequencer(t, &fakeGateway{})
	st := NewState(ReasonPoorSupport)

	_, _, err := seq.SubmitAnswer(context.Background(), st, "  ", "x")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrValidation", err)
	}
}

func TestAdvanceToOverridesAwaitingState(t *testing.T) {
	t.Parallel()

	st := NewState(ReasonTooExpensive)
	st.CurrentQuestionIndex = 1
	st.AwaitingNextQuestion = true
	st.AnsweredQuestions = []int{0}
	st.FormData["fair-price"] = "10"

	out, err := AdvanceTo(st, intPtr(0))
	if err != nil {
		t.Fatalf("AdvanceTo() error = %v", err)
	}
	if out.CurrentQuestionIndex != 0 || out.AwaitingNextQuestion {
		t.Fatalf("unexpected state: %#v", out)
	}
	if !reflect.DeepEqual(out.AnsweredQuestions, []int{0}) {
		t.Fatalf("answeredQuestions changed: %v", out.AnsweredQuestions)
	}
}

func TestAdvanceToRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	st := NewState(ReasonTooExpensive)
	for _, idx := range []int{-1, 2, 3} {
		if _, err := AdvanceTo(st, intPtr(idx)); !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("AdvanceTo(%d) error = %v, want ErrValidation", idx, err)
		}
	}
}

func TestAdvanceToKeepsCompletedFormTerminal(t *testing.T) {
	t.Parallel()

	seq := newTestSequencer(t, &fakeGateway{})
	st, fields := seq.Initialize(ReasonTooExpensive)
	var err error
	st, _, err = seq.SubmitAnswer(context.Background(), st, fields[0].ID, "10")
	if err != nil {
		t.Fatalf("SubmitAnswer(0) error = %v", err)
	}
	st, _, err = seq.SubmitAnswer(context.Background(), AcknowledgeAdvance(st), fields[1].ID, "yes")
	if err != nil {
		t.Fatalf("SubmitAnswer(1) error = %v", err)
	}

	out, err := AdvanceTo(st, intPtr(0))
	if !errors.Is(err, contractx.ErrFormComplete) {
		t.Fatalf("AdvanceTo() error = %v, want ErrFormComplete", err)
	}
	if out.CurrentQuestionIndex != len(fields) || out.Phase() != PhaseComplete {
		t.Fatalf("completed form moved: %#v", out)
	}
	if _, ok := CurrentField(out, fields); ok {
		t.Fatal("completed form must not expose a current field")
	}

	if _, err := ApplySignal(st, Signal{Index: intPtr(1)}); !errors.Is(err, contractx.ErrFormComplete) {
		t.Fatalf("ApplySignal() error = %v, want ErrFormComplete", err)
	}
	if out, err := ApplySignal(st, Signal{Index: intPtr(len(fields)), ShowNext: true}); err != nil || out.CurrentQuestionIndex != len(fields) {
		t.Fatalf("ApplySignal() at the terminal index = %#v, %v", out, err)
	}
}

func TestValidateRequiresCompleteFormAtEnd(t *testing.T) {
	t.Parallel()

	fields := ReasonTooExpensive.Fields()
	st := NewState(ReasonTooExpensive)
	st.AnsweredQuestions = []int{0, 1}
	st.IsComplete = true
	st.CurrentQuestionIndex = 0
	if err := st.Validate(len(fields)); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	st.CurrentQuestionIndex = len(fields)
	if err := st.Validate(len(fields)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestAdvanceToLastQuestionStaysAnswerable(t *testing.T) {
	t.Parallel()

	seq := newTestSequencer(t, &fakeGateway{})
	st, fields := seq.Initialize(ReasonTooExpensive)

	if _, err := AdvanceTo(st, intPtr(len(fields))); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("AdvanceTo(fieldCount) error = %v, want ErrValidation", err)
	}
	st, err := AdvanceTo(st, intPtr(len(fields)-1))
	if err != nil {
		t.Fatalf("AdvanceTo(last) error = %v", err)
	}
	if f, ok := CurrentField(st, fields); !ok || f.ID != fields[len(fields)-1].ID {
		t.Fatalf("CurrentField() = %#v, %v", f, ok)
	}
	if _, _, err := seq.SubmitAnswer(context.Background(), st, fields[len(fields)-1].ID, "yes"); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
}

func TestAdvanceToNilOrSameIndexIsNoop(t *testing.T) {
	t.Parallel()

	st := NewState(ReasonTooExpensive)
	st.CurrentQuestionIndex = 1
	st.AwaitingNextQuestion = true

	for _, idx := range []*int{nil, intPtr(1)} {
		out, err := AdvanceTo(st, idx)
		if err != nil {
			t.Fatalf("AdvanceTo() error = %v", err)
		}
		if !out.AwaitingNextQuestion || out.CurrentQuestionIndex != 1 {
			t.Fatalf("expected unchanged state, got %#v", out)
		}
	}
}

func TestAcknowledgeAdvanceIdempotent(t *testing.T) {
	t.Parallel()

	st := NewState(ReasonTooExpensive)
	st.CurrentQuestionIndex = 1
	st.AnsweredQuestions = []int{0}

	out := AcknowledgeAdvance(st)
	if !reflect.DeepEqual(out, st) {
		t.Fatalf("AcknowledgeAdvance() changed state: %#v", out)
	}

	st.AwaitingNextQuestion = true
	out = AcknowledgeAdvance(st)
	if out.AwaitingNextQuestion {
		t.Fatal("expected awaitingNextQuestion cleared")
	}
	if again := AcknowledgeAdvance(out); !reflect.DeepEqual(again, out) {
		t.Fatalf("second AcknowledgeAdvance() changed state: %#v", again)
	}
}

func TestApplySignalExplicitIndexWins(t *testing.T) {
	t.Parallel()

	st := NewState(ReasonBugsReliability)
	st.CurrentQuestionIndex = 2
	st.AwaitingNextQuestion = true
	st.AnsweredQuestions = []int{0, 1}

	out, err := ApplySignal(st, Signal{Index: intPtr(1), ShowNext: true})
	if err != nil {
		t.Fatalf("ApplySignal() error = %v", err)
	}
	if out.CurrentQuestionIndex != 1 || out.AwaitingNextQuestion {
		t.Fatalf("explicit index must win: %#v", out)
	}

	out, err = ApplySignal(st, Signal{Index: intPtr(2), ShowNext: true})
	if err != nil {
		t.Fatalf("ApplySignal() error = %v", err)
	}
	if out.CurrentQuestionIndex != 2 || out.AwaitingNextQuestion {
		t.Fatalf("unchanged index must fall through to show-next: %#v", out)
	}
}

func TestAnsweredQuestionsStayStrictlyIncreasingAcrossOverrides(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	seq := newTestSequencer(t, gw)
	st, fields := seq.Initialize(ReasonMissingFeatures)

	var err error
	st, _, err = seq.SubmitAnswer(context.Background(), st, fields[0].ID, "Feature A")
	if err != nil {
		t.Fatalf("SubmitAnswer(0) error = %v", err)
	}
	st, _, err = seq.SubmitAnswer(context.Background(), AcknowledgeAdvance(st), fields[1].ID, "Feature B")
	if err != nil {
		t.Fatalf("SubmitAnswer(1) error = %v", err)
	}

	// go back and re-answer the first question
	st, err = AdvanceTo(st, intPtr(0))
	if err != nil {
		t.Fatalf("AdvanceTo(0) error = %v", err)
	}
	st, _, err = seq.SubmitAnswer(context.Background(), st, fields[0].ID, "Feature C")
	if err != nil {
		t.Fatalf("SubmitAnswer(0 again) error = %v", err)
	}
	if !reflect.DeepEqual(st.AnsweredQuestions, []int{0, 1}) {
		t.Fatalf("answeredQuestions = %v, want [0 1]", st.AnsweredQuestions)
	}
	if st.FormData[fields[0].ID] != "Feature C" {
		t.Fatalf("expected overwritten answer, got %q", st.FormData[fields[0].ID])
	}
	if err := st.Validate(len(fields)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !IsAnswered(st, 1) || IsAnswered(st, 2) {
		t.Fatalf("IsAnswered mismatch for %v", st.AnsweredQuestions)
	}
}

func TestCurrentField(t *testing.T) {
	t.Parallel()

	fields := ReasonTooExpensive.Fields()
	st := NewState(ReasonTooExpensive)

	f, ok := CurrentField(st, fields)
	if !ok || f.ID != "fair-price" {
		t.Fatalf("CurrentField() = %#v, %v", f, ok)
	}
	st.CurrentQuestionIndex = 2
	if _, ok := CurrentField(st, fields); ok {
		t.Fatal("expected no field past the end")
	}
}

func TestFinalMessageSortsKeys(t *testing.T) {
	t.Parallel()

	msg, err := finalMessage(ReasonHardToUse, map[string]string{
		"pain-points":  "Navigation",
		"intended-use": "Task A",
	})
	if err != nil {
		t.Fatalf("finalMessage() error = %v", err)
	}
	want := "Feedback submission: hard-to-use\n{\n  \"intended-use\": \"Task A\",\n  \"pain-points\": \"Navigation\"\n}"
	if msg.Text != want {
		t.Fatalf("finalMessage() = %q, want %q", msg.Text, want)
	}
}

func TestFinalMessageKeepsUserTextVerbatim(t *testing.T) {
	t.Parallel()

	msg, err := finalMessage(ReasonOther, map[string]string{"team": "R&D <team>"})
	if err != nil {
		t.Fatalf("finalMessage() error = %v", err)
	}
	if !strings.Contains(msg.Text, `"team": "R&D <team>"`) {
		t.Fatalf("finalMessage() escaped user text: %q", msg.Text)
	}
}

func TestParseReason(t *testing.T) {
	t.Parallel()

	if r, ok := ParseReason(" Too-Expensive "); !ok || r != ReasonTooExpensive {
		t.Fatalf("ParseReason() = %q, %v", r, ok)
	}
	if _, ok := ParseReason("nope"); ok {
		t.Fatal("expected unknown reason")
	}
	if _, err := FieldsFor(ReasonOther); !errors.Is(err, contractx.ErrUnknownReason) {
		t.Fatalf("FieldsFor(other) error = %v, want ErrUnknownReason", err)
	}
}

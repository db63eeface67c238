package feedback

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

// Reason is the closed set of cancellation reasons.
type Reason string

const (
	ReasonTooExpensive    Reason = "too-expensive"
	ReasonMissingFeatures Reason = "missing-features"
	ReasonBugsReliability Reason = "bugs-reliability"
	ReasonSwitchingTools  Reason = "switching-tools"
	ReasonNoLongerNeeded  Reason = "no-longer-needed"
	ReasonPoorSupport     Reason = "poor-support"
	ReasonHardToUse       Reason = "hard-to-use"
	ReasonOther           Reason = "other"
)

type ReasonInfo struct {
	Reason      Reason  `json:"reason"`
	Label       string  `json:"label"`
	Elaboration string  `json:"elaboration"`
	Fields      []Field `json:"fields"`
}

var reasonOrder = []Reason{
	ReasonTooExpensive,
	ReasonMissingFeatures,
	ReasonBugsReliability,
	ReasonSwitchingTools,
	ReasonNoLongerNeeded,
	ReasonPoorSupport,
	ReasonHardToUse,
	ReasonOther,
}

var reasons = map[Reason]ReasonInfo{
	ReasonTooExpensive: {
		Reason:      ReasonTooExpensive,
		Label:       "Too expensive",
		Elaboration: "I'm cancelling because the product is too expensive for my budget.",
		Fields: []Field{
			{ID: "fair-price", Kind: KindNumber, Label: "What price would feel fair?", Required: true},
			{ID: "discount-change-mind", Kind: KindYesNo, Label: "Would a discount change your mind?"},
		},
	},
	ReasonMissingFeatures: {
		Reason:      ReasonMissingFeatures,
		Label:       "Missing features",
		Elaboration: "I'm cancelling because the product is missing critical features I need.",
		Fields: []Field{
			{ID: "missing-features", Kind: KindCheckbox, Label: "What feature(s) did you expect but not find?",
				Options: []string{"Feature A", "Feature B", "Feature C", "Feature D"}},
			{ID: "most-important", Kind: KindSelect, Label: "Which was most important?",
				Options: []string{"Feature A", "Feature B", "Feature C", "Feature D"}},
			{ID: "notification-email", Kind: KindText, Label: "Are you open to hearing when it's added? (Enter email)",
				Placeholder: "your@email.com"},
		},
	},
	ReasonBugsReliability: {
		Reason:      ReasonBugsReliability,
		Label:       "Bugs or reliability issues",
		Elaboration: "I'm cancelling due to bugs and reliability problems I've experienced.",
		Fields: []Field{
			{ID: "frustration-issue", Kind: KindTextarea, Label: "What issue caused the most frustration?"},
			{ID: "frequency", Kind: KindSlider, Label: "How often did it happen?",
				SliderLabels: []string{"Rarely", "Sometimes", "Often", "Constantly"}},
			{ID: "reported", Kind: KindYesNo, Label: "Did you report it?"},
		},
	},
	ReasonSwitchingTools: {
		Reason:      ReasonSwitchingTools,
		Label:       "Switching to another tool",
		Elaboration: "I'm cancelling because I'm switching to a different solution.",
		Fields: []Field{
			{ID: "switching-to", Kind: KindSelect, Label: "What tool are you switching to?",
				Options: []string{"Competitor A", "Competitor B", "Competitor C", "Other"}},
			{ID: "does-better", Kind: KindCheckbox, Label: "What does it do better?",
				Options: []string{"Price", "Features", "Reliability", "Support", "UX", "Performance"}},
			{ID: "return-email", Kind: KindText, Label: "Would you return if we closed the gap? (Enter email)",
				Placeholder: "your@email.com"},
		},
	},
	ReasonNoLongerNeeded: {
		Reason:      ReasonNoLongerNeeded,
		Label:       "No longer needed",
		Elaboration: "I'm cancelling because I no longer need this product.",
		Fields: []Field{
			{ID: "what-changed", Kind: KindCheckbox, Label: "What changed?",
				Options: []string{"Business shut down", "Project ended", "Consolidating tools", "Other"}},
			{ID: "usage-frequency", Kind: KindSlider, Label: "How often were you using the product?",
				SliderLabels: []string{"Rarely", "Monthly", "Weekly", "Daily"}},
			{ID: "future-use", Kind: KindYesNo, Label: "Would you consider using it again in the future?"},
		},
	},
	ReasonPoorSupport: {
		Reason:      ReasonPoorSupport,
		Label:       "Poor support",
		Elaboration: "I'm cancelling because the customer support wasn't helpful.",
		Fields: []Field{
			{ID: "support-issue", Kind: KindSelect, Label: "Which support issue?",
				Options: []string{"Response time", "Resolution quality", "Staff knowledge", "Communication"}},
			{ID: "support-problems", Kind: KindCheckbox, Label: "What was bad about your support?",
				Options: []string{"Too slow", "Didn't solve my problem", "Rude/unprofessional", "Hard to contact"}},
		},
	},
	ReasonHardToUse: {
		Reason:      ReasonHardToUse,
		Label:       "Hard to use",
		Elaboration: "I'm cancelling because the product was difficult to use.",
		Fields: []Field{
			{ID: "intended-use", Kind: KindCheckbox, Label: "What were you hoping to do with our app?",
				Options: []string{"Task A", "Task B", "Task C", "Task D"}},
			{ID: "pain-points", Kind: KindCheckbox, Label: "What was confusing or frustrating?",
				Options: []string{"Navigation", "Finding features", "Workflow", "Terminology", "Performance"}},
		},
	},
	ReasonOther: {
		Reason:      ReasonOther,
		Label:       "Other",
		Elaboration: "I'm cancelling for another reason.",
	},
}

// ParseReason maps a wire key onto the closed reason set.
func ParseReason(raw string) (Reason, bool) {
	r := Reason(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := reasons[r]
	return r, ok
}

func (r Reason) Info() (ReasonInfo, bool) {
	info, ok := reasons[r]
	return info, ok
}

// Fields returns the ordered field list, empty for unknown reasons.
func (r Reason) Fields() []Field {
	info, ok := reasons[r]
	if !ok {
		return nil
	}
	return append([]Field(nil), info.Fields...)
}

// FieldsFor is the strict lookup: reasons without a question list fail.
func FieldsFor(r Reason) ([]Field, error) {
	fields := r.Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %q", contractx.ErrUnknownReason, r)
	}
	return fields, nil
}

// Reasons lists every reason in display order.
func Reasons() []ReasonInfo {
	out := make([]ReasonInfo, 0, len(reasonOrder))
	for _, r := range reasonOrder {
		info := reasons[r]
		info.Fields = r.Fields()
		out = append(out, info)
	}
	return out
}

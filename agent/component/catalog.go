package component

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

const (
	MultiSelectField  = "MultiSelectField"
	SingleSelectField = "SingleSelectField"
	SliderField       = "SliderField"
	YesNoField        = "YesNoField"
	TextField         = "TextField"
	RegularMessage    = "RegularMessage"
)

// Info describes one chat widget the model may ask the UI to render.
type Info struct {
	Name string `json:"name"`
	Desc string `json:"description"`
}

var catalog = []Info{
	{Name: MultiSelectField, Desc: "A group of checkboxes that allows selecting multiple options from a list."},
	{Name: SingleSelectField, Desc: "A dropdown or radio group that allows selecting one option from a list."},
	{Name: SliderField, Desc: "A range slider input with min, max, step values and optional labels."},
	{Name: YesNoField, Desc: "A simple yes/no question presented as radio buttons or toggle."},
	{Name: TextField, Desc: "A free text answer."},
	{Name: RegularMessage, Desc: "A plain chat message without a widget."},
}

func All() []Info {
	return append([]Info(nil), catalog...)
}

func Known(name string) bool {
	name = strings.TrimSpace(name)
	for _, c := range catalog {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ValidateResponse checks the response envelope and, when set, the widget name.
func ValidateResponse(r contractx.MessageResponse) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Component == nil || strings.TrimSpace(*r.Component) == "" {
		return nil
	}
	if !Known(*r.Component) {
		return fmt.Errorf("%w: unknown component=%q", contractx.ErrSchemaViolation, *r.Component)
	}
	return nil
}

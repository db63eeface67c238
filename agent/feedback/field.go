package feedback

type FieldKind string

const (
	KindNumber   FieldKind = "number"
	KindYesNo    FieldKind = "yes-no"
	KindCheckbox FieldKind = "checkbox"
	KindSelect   FieldKind = "select"
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindSlider   FieldKind = "slider"
)

// Field is one static question of a reason's form.
type Field struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Kind         FieldKind `json:"type"`
	Options      []string  `json:"options,omitempty"`
	SliderLabels []string  `json:"sliderLabels,omitempty"`
	Placeholder  string    `json:"placeholder,omitempty"`
	Required     bool      `json:"required,omitempty"`
}

// IsMultiValue reports whether answers are a comma separated list of options.
func (f Field) IsMultiValue() bool {
	return f.Kind == KindCheckbox
}

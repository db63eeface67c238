package feedback

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

const submissionPrefix = "Feedback submission: "

// OutgoingMessage is the chat message produced by one submission.
type OutgoingMessage struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

func (m OutgoingMessage) IsBlank() bool {
	return strings.TrimSpace(m.Text) == ""
}

func answerMessage(field Field, value string) OutgoingMessage {
	return OutgoingMessage{
		Text: fmt.Sprintf(`%s"%s": %s`, submissionPrefix, field.Label, value),
	}
}

// dumpConfig sorts keys so the text is stable and leaves user text unescaped.
var dumpConfig = sonic.Config{SortMapKeys: true}.Froze()

// finalMessage dumps the whole form.
func finalMessage(reason Reason, formData map[string]string) (OutgoingMessage, error) {
	raw, err := dumpConfig.MarshalIndent(formData, "", "  ")
	if err != nil {
		return OutgoingMessage{}, fmt.Errorf("marshal form data: %w", err)
	}
	return OutgoingMessage{
		Text:  submissionPrefix + string(reason) + "\n" + string(raw),
		Final: true,
	}, nil
}

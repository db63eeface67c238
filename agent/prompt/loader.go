package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

var (
	//go:embed template/summary.txt
	summaryRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Summary string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Summary: strings.TrimSpace(summaryRaw),
	}
}

func (p PromptSet) Validate() error {
	if p.Summary == "" {
		return fmt.Errorf("%w: summary", contractx.ErrPromptMissing)
	}
	return nil
}

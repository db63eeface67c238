package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

// WriteMemory replaces the summary with the model's newSummary.
// The version read earlier in the run guards against a concurrent writer.
func WriteMemory(
	ctx context.Context,
	in *GraphState,
	memory contractx.SummaryStore,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	version, err := memory.WriteSummary(ctx, in.ConversationID, in.Result.NewSummary, in.Summary.Version)
	if err != nil {
		return nil, err
	}
	in.SummaryVersion = version
	return in, nil
}

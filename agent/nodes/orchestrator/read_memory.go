package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

func ReadMemory(
	ctx context.Context,
	in *GraphState,
	memory contractx.SummaryStore,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	summary, err := memory.ReadSummary(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	in.Summary = summary
	return in, nil
}

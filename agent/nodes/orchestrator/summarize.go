package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

// UserResponse is the single line the model sees for one user turn.
func UserResponse(previousComponentState string, message string) string {
	return fmt.Sprintf("selections: %s message: %s", previousComponentState, message)
}

func Summarize(
	ctx context.Context,
	in *GraphState,
	summarizer contractx.Summarizer,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	out, err := summarizer.Summarize(ctx, contractx.SummaryRequest{
		PreviousSummary: in.Summary.Text,
		UserResponse:    UserResponse(in.PreviousComponentState, in.Message),
	})
	if err != nil {
		return nil, err
	}
	in.Result = out
	return in, nil
}

package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	return GraphOutput{
		Response:       in.Result,
		SummaryVersion: in.SummaryVersion,
	}, nil
}

package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

var ErrInvalidMessage = fmt.Errorf("%w: message is required", contractx.ErrValidation)

type GraphInput struct {
	ConversationID         string
	PreviousComponentState string
	Message                string
}

type GraphOutput struct {
	Response       contractx.ExchangeResponse
	SummaryVersion int64
}

type GraphState struct {
	ConversationID         string
	PreviousComponentState string
	Message                string

	Summary        contractx.Summary
	Result         contractx.ExchangeResponse
	SummaryVersion int64
}

// ValidateRequest rejects blank messages before anything reads or writes the summary.
func ValidateRequest(in GraphInput, defaultConversationID string) (*GraphState, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrInvalidMessage
	}

	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		conversationID = defaultConversationID
	}
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is empty", contractx.ErrValidation)
	}

	return &GraphState{
		ConversationID:         conversationID,
		PreviousComponentState: in.PreviousComponentState,
		Message:                in.Message,
	}, nil
}

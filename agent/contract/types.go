package contract

import "fmt"

type ResponseType string

const (
	ResponseTypeQuestion ResponseType = "question"
	ResponseTypeFarewell ResponseType = "farewell"
)

type SendOptions struct {
	StreamResponse bool `json:"streamResponse"`
}

type Summary struct {
	Text    string `json:"text"`
	Version int64  `json:"version"`
}

type ExchangeRequest struct {
	ConversationID         string `json:"conversationId,omitempty"`
	PreviousComponentState string `json:"previousComponentState"`
	Message                string `json:"message"`
}

// SummaryRequest is the payload handed to the language model.
type SummaryRequest struct {
	PreviousSummary string `json:"previousSummary"`
	UserResponse    string `json:"userResponse"`
}

type ExchangeResponse struct {
	NewSummary string          `json:"newSummary"`
	Response   MessageResponse `json:"response"`
}

type MessageResponse struct {
	Type         ResponseType `json:"type"`
	Content      string       `json:"content"`
	Component    *string      `json:"component"`
	ConfigValues *string      `json:"configValues"`
}

func (r MessageResponse) Validate() error {
	switch r.Type {
	case ResponseTypeQuestion, ResponseTypeFarewell:
	default:
		return fmt.Errorf("%w: response.type=%q", ErrSchemaViolation, r.Type)
	}
	return nil
}

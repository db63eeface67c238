package contract

import "context"

// MessageGateway delivers one outgoing chat message.
type MessageGateway interface {
	Send(ctx context.Context, message string, opts SendOptions) error
}

// SummaryStore keeps one running summary per conversation.
// WriteSummary must fail with ErrVersionConflict when expectedVersion is stale.
type SummaryStore interface {
	ReadSummary(ctx context.Context, conversationID string) (Summary, error)
	WriteSummary(ctx context.Context, conversationID string, text string, expectedVersion int64) (int64, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (ExchangeResponse, error)
}

// Exchanger runs one summary exchange.
type Exchanger interface {
	Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResponse, error)
}

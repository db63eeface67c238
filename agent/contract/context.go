package contract

import "context"

type ctxKey int

const (
	conversationIDKey ctxKey = iota
	componentStateKey
)

// WithConversationID tags outgoing messages with the conversation they belong to.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationIDKey, conversationID)
}

func ConversationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(conversationIDKey).(string)
	return id
}

// WithComponentState carries the serialized widget state that produced a message.
func WithComponentState(ctx context.Context, state string) context.Context {
	return context.WithValue(ctx, componentStateKey, state)
}

func ComponentStateFrom(ctx context.Context) string {
	state, _ := ctx.Value(componentStateKey).(string)
	return state
}

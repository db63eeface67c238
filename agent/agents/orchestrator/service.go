package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	nodex "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/nodes/orchestrator"
)

var ErrInvalidMessage = nodex.ErrInvalidMessage

const defaultConversationID = "default"

type Config struct {
	DefaultConversationID string
}

// Orchestrator runs one summary exchange per call: read the running summary,
// ask the model for the next turn, overwrite the summary. Nothing is retried.
type Orchestrator struct {
	summarizer contractx.Summarizer
	memory     contractx.SummaryStore

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	defaultConversationID string
}

func New(
	summarizer contractx.Summarizer,
	memory contractx.SummaryStore,
	cfg Config,
) (*Orchestrator, error) {
	if summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if memory == nil {
		return nil, errors.New("summary store is required")
	}

	conversationID := strings.TrimSpace(cfg.DefaultConversationID)
	if conversationID == "" {
		conversationID = defaultConversationID
	}

	o := &Orchestrator{
		summarizer:            summarizer,
		memory:                memory,
		defaultConversationID: conversationID,
	}

	graphRunner, err := o.compileExchangeGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

func (o *Orchestrator) Exchange(ctx context.Context, req contractx.ExchangeRequest) (contractx.ExchangeResponse, error) {
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		ConversationID:         req.ConversationID,
		PreviousComponentState: req.PreviousComponentState,
		Message:                req.Message,
	})
	if err != nil {
		return contractx.ExchangeResponse{}, unwrapGraphError(err)
	}

	log.Ctx(ctx).Debug().
		Str("conversation_id", conversationIDOrDefault(req.ConversationID, o.defaultConversationID)).
		Str("response_type", string(out.Response.Response.Type)).
		Int64("summary_version", out.SummaryVersion).
		Msg("summary exchange completed")
	return out.Response, nil
}

// unwrapGraphError keeps the sentinel chain intact for callers that classify
// errors with errors.Is; eino wraps node errors with graph context.
func unwrapGraphError(err error) error {
	for _, sentinel := range []error{
		contractx.ErrValidation,
		contractx.ErrVersionConflict,
		contractx.ErrSchemaViolation,
		contractx.ErrModelInvoke,
		contractx.ErrUpstream,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return errors.Join(contractx.ErrUpstream, err)
}

func conversationIDOrDefault(id, fallback string) string {
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		return trimmed
	}
	return fallback
}

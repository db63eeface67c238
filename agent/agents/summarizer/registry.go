package summarizer

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	llmx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/llm"
	promptx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/prompt"
	chatmodelx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/chatmodel"
)

// New builds the summarizer for the configured backend.
func New(ctx context.Context, cfg llmx.Config) (contractx.Summarizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	modelCfg := cfg.ChatModel()
	switch cfg.Backend {
	case llmx.BackendOpenAI:
		client := chatmodelx.NewClient(modelCfg)
		if client == nil {
			return nil, fmt.Errorf("%w: openai client not configured", contractx.ErrModelInvoke)
		}
		return &openAISummarizer{
			completions:  &client.Chat.Completions,
			model:        modelCfg.Model,
			temperature:  modelCfg.Temperature,
			maxTokens:    cfg.MaxCompletionToken,
			systemPrompt: prompts.Summary,
		}, nil
	default:
		chatModel, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create summary model: %v", contractx.ErrModelInvoke, err)
		}
		return newEinoSummarizer(ctx, chatModel, prompts.Summary)
	}
}

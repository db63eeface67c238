package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	componentx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/component"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

type summaryLLMOutput struct {
	NewSummary string                    `json:"newSummary"`
	Response   contractx.MessageResponse `json:"response"`
}

func (o summaryLLMOutput) toResponse() (contractx.ExchangeResponse, error) {
	if err := componentx.ValidateResponse(o.Response); err != nil {
		return contractx.ExchangeResponse{}, err
	}
	return contractx.ExchangeResponse{
		NewSummary: o.NewSummary,
		Response:   o.Response,
	}, nil
}

func marshalRequest(req contractx.SummaryRequest) (string, error) {
	input, err := sonic.MarshalString(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshal summary payload: %v", contractx.ErrValidation, err)
	}
	return input, nil
}

type einoSummarizer struct {
	runner compose.Runnable[map[string]any, summaryLLMOutput]
}

func newEinoSummarizer(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*einoSummarizer, error) {
	runner, err := compileSummaryGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &einoSummarizer{runner: runner}, nil
}

func (s *einoSummarizer) Summarize(ctx context.Context, req contractx.SummaryRequest) (contractx.ExchangeResponse, error) {
	input, err := marshalRequest(req)
	if err != nil {
		return contractx.ExchangeResponse{}, err
	}

	out, err := s.runner.Invoke(ctx, map[string]any{
		"input": input,
	})
	if err != nil {
		// the graph does not tell a transport failure from a parse failure
		return contractx.ExchangeResponse{}, fmt.Errorf("%w: summary invoke: %v", contractx.ErrModelInvoke, err)
	}
	return out.toResponse()
}

type completionService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// openAISummarizer calls chat completions in JSON object mode.
type openAISummarizer struct {
	completions  completionService
	model        string
	temperature  float32
	maxTokens    int
	systemPrompt string
}

func (s *openAISummarizer) Summarize(ctx context.Context, req contractx.SummaryRequest) (contractx.ExchangeResponse, error) {
	input, err := marshalRequest(req)
	if err != nil {
		return contractx.ExchangeResponse{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.systemPrompt),
			openai.UserMessage(input),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(float64(s.temperature)),
	}
	if s.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(s.maxTokens))
	}

	completion, err := s.completions.New(ctx, params)
	if err != nil {
		return contractx.ExchangeResponse{}, fmt.Errorf("%w: chat completion: %v", contractx.ErrModelInvoke, err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return contractx.ExchangeResponse{}, fmt.Errorf("%w: completion has no choices", contractx.ErrSchemaViolation)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		content = "{}"
	}
	var out summaryLLMOutput
	if err := sonic.UnmarshalString(content, &out); err != nil {
		return contractx.ExchangeResponse{}, fmt.Errorf("%w: decode completion: %v", contractx.ErrSchemaViolation, err)
	}
	return out.toResponse()
}

// Package gateway holds the contract.MessageGateway backends.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	qstashx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/qstash"
)

const (
	BackendExchange = "exchange"
	BackendQStash   = "qstash"
	BackendLog      = "log"
)

// Envelope is the wire form of one outgoing feedback message.
type Envelope struct {
	contractx.ExchangeRequest
	StreamResponse bool `json:"streamResponse"`
}

func envelopeFrom(ctx context.Context, message string, opts contractx.SendOptions) Envelope {
	return Envelope{
		ExchangeRequest: contractx.ExchangeRequest{
			ConversationID:         contractx.ConversationIDFrom(ctx),
			PreviousComponentState: contractx.ComponentStateFrom(ctx),
			Message:                message,
		},
		StreamResponse: opts.StreamResponse,
	}
}

func checkMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return contractx.ErrEmptyMessage
	}
	return nil
}

// ExchangeGateway turns every feedback message into a summary exchange, the
// same way a typed chat message would be handled.
type ExchangeGateway struct {
	exchanger contractx.Exchanger
	onReply   func(ctx context.Context, reply contractx.ExchangeResponse)
}

type ExchangeOption func(*ExchangeGateway)

// WithReplyHandler receives the model's reply to each delivered message.
func WithReplyHandler(fn func(ctx context.Context, reply contractx.ExchangeResponse)) ExchangeOption {
	return func(g *ExchangeGateway) {
		g.onReply = fn
	}
}

func NewExchangeGateway(exchanger contractx.Exchanger, opts ...ExchangeOption) (*ExchangeGateway, error) {
	if exchanger == nil {
		return nil, errors.New("exchanger is required")
	}
	g := &ExchangeGateway{exchanger: exchanger}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *ExchangeGateway) Send(ctx context.Context, message string, opts contractx.SendOptions) error {
	if err := checkMessage(message); err != nil {
		return err
	}
	env := envelopeFrom(ctx, message, opts)
	reply, err := g.exchanger.Exchange(ctx, env.ExchangeRequest)
	if err != nil {
		return err
	}
	log.Ctx(ctx).Debug().
		Str("conversation_id", env.ConversationID).
		Str("reply_type", string(reply.Response.Type)).
		Msg("feedback message exchanged")
	if g.onReply != nil {
		g.onReply(ctx, reply)
	}
	return nil
}

type publisher interface {
	Publish(ctx context.Context, req qstashx.PublishRequest) (qstashx.PublishResponse, error)
}

// QStashGateway hands messages to QStash for asynchronous delivery.
type QStashGateway struct {
	client      publisher
	destination string
}

func NewQStashGateway(client *qstashx.Client, destination string) (*QStashGateway, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, errors.New("qstash destination is required")
	}
	return &QStashGateway{client: client, destination: destination}, nil
}

func (g *QStashGateway) Send(ctx context.Context, message string, opts contractx.SendOptions) error {
	if err := checkMessage(message); err != nil {
		return err
	}
	env := envelopeFrom(ctx, message, opts)
	body, err := sonic.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	forward := map[string]string{}
	if env.ConversationID != "" {
		forward["X-Conversation-ID"] = env.ConversationID
	}
	out, err := g.client.Publish(ctx, qstashx.PublishRequest{
		Destination: g.destination,
		Body:        body,
		Forward:     forward,
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Debug().
		Str("conversation_id", env.ConversationID).
		Str("message_id", out.MessageID).
		Msg("feedback message published")
	return nil
}

// LogGateway only writes messages to the log.
type LogGateway struct{}

func (LogGateway) Send(ctx context.Context, message string, opts contractx.SendOptions) error {
	if err := checkMessage(message); err != nil {
		return err
	}
	log.Ctx(ctx).Info().
		Str("conversation_id", contractx.ConversationIDFrom(ctx)).
		Bool("stream_response", opts.StreamResponse).
		Str("message", message).
		Msg("feedback message")
	return nil
}

// Recorder counts gateway sends.
type Recorder interface {
	GatewaySent(backend string, err error)
}

type instrumented struct {
	next     contractx.MessageGateway
	backend  string
	recorder Recorder
}

func Instrument(next contractx.MessageGateway, backend string, recorder Recorder) contractx.MessageGateway {
	if recorder == nil {
		return next
	}
	return &instrumented{next: next, backend: backend, recorder: recorder}
}

func (g *instrumented) Send(ctx context.Context, message string, opts contractx.SendOptions) error {
	err := g.next.Send(ctx, message, opts)
	g.recorder.GatewaySent(g.backend, err)
	return err
}

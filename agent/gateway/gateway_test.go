package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	qstashx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/qstash"
)

type fakeExchanger struct {
	reqs []contractx.ExchangeRequest
	err  error
}

func (f *fakeExchanger) Exchange(ctx context.Context, req contractx.ExchangeRequest) (contractx.ExchangeResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return contractx.ExchangeResponse{}, f.err
	}
	return contractx.ExchangeResponse{
		NewSummary: "s",
		Response:   contractx.MessageResponse{Type: contractx.ResponseTypeQuestion, Content: "next?"},
	}, nil
}

func taggedContext() context.Context {
	ctx := contractx.WithConversationID(context.Background(), "conv-1")
	return contractx.WithComponentState(ctx, `{"reason":"too-expensive"}`)
}

func TestExchangeGatewayForwardsContext(t *testing.T) {
	t.Parallel()

	exchanger := &fakeExchanger{}
	var replies []contractx.ExchangeResponse
	g, err := NewExchangeGateway(exchanger, WithReplyHandler(func(ctx context.Context, reply contractx.ExchangeResponse) {
		replies = append(replies, reply)
	}))
	if err != nil {
		t.Fatalf("NewExchangeGateway() error = %v", err)
	}

	if err := g.Send(taggedContext(), `Feedback submission: "What price would feel fair?": 10`, contractx.SendOptions{StreamResponse: true}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(exchanger.reqs) != 1 {
		t.Fatalf("expected one exchange, got %d", len(exchanger.reqs))
	}
	want := contractx.ExchangeRequest{
		ConversationID:         "conv-1",
		PreviousComponentState: `{"reason":"too-expensive"}`,
		Message:                `Feedback submission: "What price would feel fair?": 10`,
	}
	if exchanger.reqs[0] != want {
		t.Fatalf("request = %#v, want %#v", exchanger.reqs[0], want)
	}
	if len(replies) != 1 || replies[0].Response.Content != "next?" {
		t.Fatalf("reply handler not called: %#v", replies)
	}
}

func TestExchangeGatewayPropagatesError(t *testing.T) {
	t.Parallel()

	g, err := NewExchangeGateway(&fakeExchanger{err: contractx.ErrModelInvoke})
	if err != nil {
		t.Fatalf("NewExchangeGateway() error = %v", err)
	}
	if err := g.Send(context.Background(), "hello", contractx.SendOptions{}); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestGatewaysRejectBlankMessages(t *testing.T) {
	t.Parallel()

	exchanger := &fakeExchanger{}
	g, _ := NewExchangeGateway(exchanger)
	for _, gw := range []contractx.MessageGateway{g, LogGateway{}} {
		if err := gw.Send(context.Background(), "  ", contractx.SendOptions{}); !errors.Is(err, contractx.ErrEmptyMessage) {
			t.Fatalf("Send() error = %v, want ErrEmptyMessage", err)
		}
	}
	if len(exchanger.reqs) != 0 {
		t.Fatal("blank message reached the exchanger")
	}
}

func TestQStashGatewayPublishesEnvelope(t *testing.T) {
	t.Parallel()

	var (
		gotPath    string
		gotForward string
		gotEnv     map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotPath = r.URL.Path
		gotForward = r.Header.Get("Upstash-Forward-X-Conversation-ID")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotEnv); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		fmt.Fprint(w, `{"messageId":"msg_1"}`)
	}))
	t.Cleanup(server.Close)

	client, err := qstashx.NewClient(qstashx.Config{URL: server.URL, Token: "tok"}, qstashx.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	g, err := NewQStashGateway(client, "https://feedback.example.com/api/qstash/message")
	if err != nil {
		t.Fatalf("NewQStashGateway() error = %v", err)
	}

	if err := g.Send(taggedContext(), "hello", contractx.SendOptions{StreamResponse: true}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/v2/publish/https://feedback.example.com/api/qstash/message" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotForward != "conv-1" {
		t.Fatalf("forward header = %q", gotForward)
	}
	if gotEnv["conversationId"] != "conv-1" || gotEnv["message"] != "hello" || gotEnv["streamResponse"] != true {
		t.Fatalf("envelope = %#v", gotEnv)
	}
	if gotEnv["previousComponentState"] != `{"reason":"too-expensive"}` {
		t.Fatalf("component state = %#v", gotEnv["previousComponentState"])
	}
}

type fakeRecorder struct {
	events []string
}

func (f *fakeRecorder) GatewaySent(backend string, err error) {
	status := "ok"
	if err != nil {
		status = "err"
	}
	f.events = append(f.events, backend+":"+status)
}

type failingGateway struct{}

func (failingGateway) Send(context.Context, string, contractx.SendOptions) error {
	return errors.New("down")
}

func TestInstrumentRecordsOutcome(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	ok := Instrument(LogGateway{}, BackendLog, rec)
	bad := Instrument(failingGateway{}, BackendQStash, rec)

	_ = ok.Send(context.Background(), "hello", contractx.SendOptions{})
	_ = bad.Send(context.Background(), "hello", contractx.SendOptions{})

	if len(rec.events) != 2 || rec.events[0] != "log:ok" || rec.events[1] != "qstash:err" {
		t.Fatalf("events = %v", rec.events)
	}
	if Instrument(LogGateway{}, BackendLog, nil) != (LogGateway{}) {
		t.Fatal("nil recorder should return the gateway unchanged")
	}
}

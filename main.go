package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/agents/collector"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/agents/summarizer"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/feedback"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/gateway"
	llmx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/llm"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/memory"
	statex "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/state"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/api"
	configx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/config"
	_ "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/logger/autoload"
	metricsx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/metrics"
	qstashx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/qstash"
)

type AppConfig struct {
	Addr                  string        `envconfig:"ADDR" default:":8080"`
	SummaryBackend        string        `envconfig:"SUMMARY_BACKEND" default:"memory"`
	SessionBackend        string        `envconfig:"SESSION_BACKEND" default:"memory"`
	GatewayBackend        string        `envconfig:"GATEWAY_BACKEND" default:"exchange"`
	DefaultConversationID string        `envconfig:"DEFAULT_CONVERSATION_ID" default:"default"`
	SummaryDir            string        `envconfig:"SUMMARY_DIR" default:"data/summaries"`
	ReadTimeout           time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout          time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout       time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c AppConfig) Validate() error {
	switch c.SummaryBackend {
	case "memory", "file", "redis", "postgres":
	default:
		return fmt.Errorf("unsupported summary backend %q", c.SummaryBackend)
	}
	switch c.SessionBackend {
	case "memory", "upstash":
	default:
		return fmt.Errorf("unsupported session backend %q", c.SessionBackend)
	}
	switch c.GatewayBackend {
	case gateway.BackendExchange, gateway.BackendQStash, gateway.BackendLog:
	default:
		return fmt.Errorf("unsupported gateway backend %q", c.GatewayBackend)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Requests keep running through shutdown, so they do not inherit the
	// signal context.
	baseCtx := log.Logger.WithContext(context.Background())
	ctx = log.Logger.WithContext(ctx)

	appCfg := configx.MustNew[AppConfig]("")
	metrics := metricsx.New()

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	summary, err := summarizer.New(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize summarizer")
	}

	summaryStore, closeStore, err := newSummaryStore(ctx, *appCfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", appCfg.SummaryBackend).Msg("failed to initialize summary store")
	}
	defer closeStore()

	exchanger, err := orchestrator.New(summary, summaryStore, orchestrator.Config{
		DefaultConversationID: appCfg.DefaultConversationID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize orchestrator")
	}

	sessions, err := newSessionStore(*appCfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", appCfg.SessionBackend).Msg("failed to initialize session store")
	}

	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	outbound, err := newGateway(*appCfg, *qstashCfg, exchanger)
	if err != nil {
		log.Fatal().Err(err).Str("backend", appCfg.GatewayBackend).Msg("failed to initialize message gateway")
	}

	sequencer, err := feedback.NewSequencer(
		gateway.Instrument(outbound, appCfg.GatewayBackend, metrics),
		feedback.WithCompleteHook(func(ctx context.Context, reason feedback.Reason, formData map[string]string) {
			log.Ctx(ctx).Info().
				Str("conversation_id", contractx.ConversationIDFrom(ctx)).
				Str("reason", string(reason)).
				Interface("form_data", formData).
				Msg("feedback form completed")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize feedback sequencer")
	}

	feedbackSvc, err := collector.New(sessions, sequencer, collector.WithRecorder(metrics))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize feedback collector")
	}

	serverOpts := []api.Option{api.WithMetrics(metrics), api.WithLogger(log.Logger)}
	if verifier := qstashx.NewVerifier(qstashCfg.CurrentSigningKey, qstashCfg.NextSigningKey); verifier.Enabled() {
		serverOpts = append(serverOpts, api.WithQStashReceiver(verifier, qstashCfg.Destination))
	}
	server, err := api.NewServer(exchanger, feedbackSvc, serverOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize api server")
	}

	httpServer := &http.Server{
		Addr:         appCfg.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  appCfg.ReadTimeout,
		WriteTimeout: appCfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", appCfg.Addr).
			Str("summary_backend", appCfg.SummaryBackend).
			Str("session_backend", appCfg.SessionBackend).
			Str("gateway_backend", appCfg.GatewayBackend).
			Str("llm_backend", string(llmCfg.Backend)).
			Msg("cancellation feedback server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return
	}
	log.Info().Msg("server stopped")
}

func newSummaryStore(ctx context.Context, cfg AppConfig) (contractx.SummaryStore, func(), error) {
	noop := func() {}
	switch cfg.SummaryBackend {
	case "file":
		store, err := memory.NewFileStore(cfg.SummaryDir)
		return store, noop, err
	case "redis":
		redisCfg := configx.MustNew[memory.RedisConfig]("REDIS")
		client := redisCfg.Client()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		store := memory.NewRedisStore(client, memory.WithRedisTTL(redisCfg.TTL), memory.WithRedisPrefix(redisCfg.Prefix))
		return store, func() { _ = client.Close() }, nil
	case "postgres":
		pgCfg, err := configx.New[memory.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, noop, err
		}
		db, err := pgCfg.Open()
		if err != nil {
			return nil, noop, err
		}
		store := memory.NewPostgresStore(db)
		if pgCfg.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = db.Close()
				return nil, noop, err
			}
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return memory.NewInMemoryStore(), noop, nil
	}
}

func newSessionStore(cfg AppConfig) (statex.Store, error) {
	if cfg.SessionBackend != "upstash" {
		return statex.NewMemoryStore(), nil
	}
	upstashCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	return statex.NewUpstashRedisStore(*upstashCfg)
}

func newGateway(cfg AppConfig, qstashCfg qstashx.Config, exchanger contractx.Exchanger) (contractx.MessageGateway, error) {
	switch cfg.GatewayBackend {
	case gateway.BackendQStash:
		client, err := qstashx.NewClient(qstashCfg)
		if err != nil {
			return nil, err
		}
		return gateway.NewQStashGateway(client, qstashCfg.Destination)
	case gateway.BackendLog:
		return gateway.LogGateway{}, nil
	default:
		return gateway.NewExchangeGateway(exchanger, gateway.WithReplyHandler(func(ctx context.Context, reply contractx.ExchangeResponse) {
			log.Ctx(ctx).Info().
				Str("conversation_id", contractx.ConversationIDFrom(ctx)).
				Str("reply_type", string(reply.Response.Type)).
				Str("reply", reply.Response.Content).
				Msg("assistant replied to feedback")
		}))
	}
}

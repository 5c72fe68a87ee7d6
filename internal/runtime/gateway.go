// Package runtime assembles the interview gateway from configuration and
// manages its lifecycle.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/interview-gateway/internal/anticheat"
	"github.com/tjfontaine/interview-gateway/internal/api"
	"github.com/tjfontaine/interview-gateway/internal/interview"
	"github.com/tjfontaine/interview-gateway/internal/oracle"
	"github.com/tjfontaine/interview-gateway/internal/pkg/config"
	"github.com/tjfontaine/interview-gateway/internal/server"
	"github.com/tjfontaine/interview-gateway/internal/session"
	"github.com/tjfontaine/interview-gateway/internal/storage/sqlite"
	"github.com/tjfontaine/interview-gateway/internal/taskgen"
	"github.com/tjfontaine/interview-gateway/internal/tokens"
)

// Gateway owns every component of a running interview backend.
type Gateway struct {
	// Dependencies (injected via options)
	cfg        *config.Config
	logger     *slog.Logger
	generator  taskgen.TaskGenerator
	analyzer   interview.Analyzer
	extraSinks []anticheat.Sink

	// Built by New
	sessions   *session.Store
	interviews *session.Interviews
	journal    *sqlite.EventJournal
	server     *server.Server

	// Lifecycle management
	mu      sync.Mutex
	started bool
	errs    chan error
}

// New builds a Gateway. A configuration is required (WithConfig or
// WithConfigFile); every other component defaults to what it describes.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
		errs:   make(chan error, 1),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithConfigFile)")
	}

	if err := gw.build(); err != nil {
		if gw.journal != nil {
			gw.journal.Close()
		}
		return nil, err
	}
	return gw, nil
}

func (g *Gateway) build() error {
	cfg := g.cfg

	g.sessions = session.NewStore(cfg.Sessions.MaxSessions, session.WithLogger(g.logger))
	g.interviews = session.NewInterviews(cfg.Sessions.MaxInterviews)

	if g.analyzer == nil {
		g.analyzer = oracle.NewClient(
			oracle.WithBaseURL(cfg.Oracle.BaseURL),
			oracle.WithPath(cfg.Oracle.Path),
			oracle.WithModel(cfg.Oracle.Model),
			oracle.WithAPIKey(cfg.Oracle.APIKey),
			oracle.WithTimeout(cfg.Oracle.Timeout),
		)
		g.logger.Info("oracle configured",
			slog.String("base_url", cfg.Oracle.BaseURL),
			slog.String("model", cfg.Oracle.Model))
	}

	if g.generator == nil {
		bridge, err := taskgen.NewFileBridge(taskgen.Options{
			Command:    cfg.Generator.Command,
			Args:       cfg.Generator.Args,
			WorkDir:    cfg.Generator.WorkDir,
			InputFile:  cfg.Generator.InputFile,
			OutputFile: cfg.Generator.OutputFile,
			Timeout:    cfg.Generator.Timeout,
			Isolate:    cfg.Generator.Isolate,
			Logger:     g.logger,
		})
		if err != nil {
			return fmt.Errorf("create task generator: %w", err)
		}
		g.generator = bridge
	}

	pipelineOpts := []interview.Option{interview.WithLogger(g.logger)}
	if cfg.Oracle.MaxPromptTokens > 0 {
		pipelineOpts = append(pipelineOpts,
			interview.WithTokenBudget(tokens.NewTiktokenCounter(), cfg.Oracle.Model, cfg.Oracle.MaxPromptTokens))
	}
	pipeline := interview.NewPipeline(g.sessions, g.analyzer, pipelineOpts...)

	sinks := []anticheat.Sink{anticheat.NewLogSink(g.logger)}
	if cfg.Anticheat.Sink == "sqlite" {
		journal, err := sqlite.New(cfg.Anticheat.SQLitePath)
		if err != nil {
			return fmt.Errorf("open anticheat journal: %w", err)
		}
		g.journal = journal
		sinks = append(sinks, journal)
		g.logger.Info("anticheat journal opened", slog.String("path", cfg.Anticheat.SQLitePath))
	}
	if wh := cfg.Anticheat.Webhook; wh.URL != "" {
		sink, err := anticheat.NewWebhookSink(anticheat.WebhookConfig{
			URL:          wh.URL,
			Timeout:      wh.Timeout,
			Retries:      wh.Retries,
			Headers:      wh.Headers,
			BlockPrivate: wh.BlockPrivate,
		})
		if err != nil {
			return fmt.Errorf("create anticheat webhook: %w", err)
		}
		sinks = append(sinks, sink)
	}
	sinks = append(sinks, g.extraSinks...)
	recorder := anticheat.NewRecorder(sinks,
		anticheat.WithSessions(g.sessions),
		anticheat.WithLogger(g.logger))

	deps := api.Deps{
		Pipeline:   pipeline,
		Recorder:   recorder,
		Generator:  g.generator,
		Sessions:   g.sessions,
		Interviews: g.interviews,
		Logger:     g.logger,
	}
	if g.journal != nil {
		deps.Journal = g.journal
	}

	g.server = server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		ServiceName:    cfg.Telemetry.ServiceName,
	}, g.logger)
	api.NewHandler(deps).Routes(g.server.Router)

	return nil
}

// Handler returns the fully wired HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.server.Router
}

// Sessions exposes the session store.
func (g *Gateway) Sessions() *session.Store {
	return g.sessions
}

// Start begins serving HTTP in the background. Listen failures are
// delivered on Err.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return fmt.Errorf("gateway already started")
	}
	g.started = true

	go func() {
		if err := g.server.Start(); err != nil {
			g.logger.Error("server error", slog.String("error", err.Error()))
			g.errs <- err
		}
	}()

	g.logger.Info("gateway started",
		slog.Int("port", g.cfg.Server.Port),
		slog.String("anticheat_sink", g.cfg.Anticheat.Sink))
	return nil
}

// Err reports a fatal server error after Start.
func (g *Gateway) Err() <-chan error {
	return g.errs
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	// Stop HTTP server
	if err := g.server.Shutdown(ctx); err != nil {
		g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		return err
	}

	// Close resources
	if g.journal != nil {
		if err := g.journal.Close(); err != nil {
			g.logger.Error("failed to close anticheat journal", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/interview-gateway/internal/anticheat"
	"github.com/tjfontaine/interview-gateway/internal/interview"
	"github.com/tjfontaine/interview-gateway/internal/pkg/config"
	"github.com/tjfontaine/interview-gateway/internal/taskgen"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from path, the environment and defaults.
// An empty path reads the optional config.yaml in the working directory.
func WithConfigFile(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithTaskGenerator replaces the subprocess bridge built from config.
func WithTaskGenerator(generator taskgen.TaskGenerator) Option {
	return func(g *Gateway) error {
		g.generator = generator
		return nil
	}
}

// WithOracle replaces the HTTP oracle client built from config.
func WithOracle(analyzer interview.Analyzer) Option {
	return func(g *Gateway) error {
		g.analyzer = analyzer
		return nil
	}
}

// WithEventSink adds a sink that receives every anti-cheat event in
// addition to the configured ones.
func WithEventSink(sink anticheat.Sink) Option {
	return func(g *Gateway) error {
		g.extraSinks = append(g.extraSinks, sink)
		return nil
	}
}

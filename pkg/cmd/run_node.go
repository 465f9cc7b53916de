package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/node"
	rollconf "github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/telemetry"
)

const (
	// ackBufferSize bounds the acknowledgements of executed transactions waiting to be consumed.
	ackBufferSize = 16

	shutdownTimeout = 10 * time.Second
)

// ParseConfig is an helpers that loads the node configuration and validates it.
func ParseConfig(cmd *cobra.Command) (rollconf.Config, error) {
	nodeConfig, err := rollconf.Load(cmd)
	if err != nil {
		return rollconf.Config{}, fmt.Errorf("failed to load node config: %w", err)
	}

	if err := nodeConfig.Validate(); err != nil {
		return rollconf.Config{}, fmt.Errorf("failed to validate node config: %w", err)
	}

	return nodeConfig, nil
}

// SetupLogger creates a zerolog logger writing to stderr based on the provided configuration.
//
// Configuration options:
//   - Output format (text or JSON)
//   - Log level (debug, info, warn, error)
//   - Caller information for every entry when trace is enabled
func SetupLogger(config rollconf.LogConfig) zerolog.Logger {
	return newLogger(os.Stderr, config)
}

func newLogger(w io.Writer, config rollconf.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if config.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logCtx := zerolog.New(out).Level(level).With().Timestamp()
	if config.Trace {
		logCtx = logCtx.Caller()
	}
	return logCtx.Logger()
}

// StartNode builds the partial node from nodeConfig and runs it until it stops or the process
// receives SIGINT or SIGTERM.
func StartNode(logger zerolog.Logger, cmd *cobra.Command, nodeConfig rollconf.Config) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdownTracing, err := telemetry.InitTracing(ctx, nodeConfig.Instrumentation, nodeConfig.Execution.ChainID, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	// executed transactions flow back into the node to release the mempool
	acks := make(chan []execution.TxResult, ackBufferSize)

	partialNode, err := node.TryFromConfig(ctx, nodeConfig, acks, logger)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("node panicked: %v", r)
				logger.Error().Interface("panic", r).Msg("recovered from panic in node")
				errCh <- err
			}
		}()
		errCh <- partialNode.Run(ctx, acks)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		logger.Info().Msg("shutting down node...")
		cancel()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("node error")
			return err
		}
		logger.Info().Msg("node stopped")
		return nil
	}

	select {
	case <-time.After(shutdownTimeout):
		logger.Info().Msg("node shutdown timed out")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("error during shutdown")
			return err
		}
	}

	return nil
}

// logConfigFromFlags reads the global logging flags of cmd, falling back to the defaults.
func logConfigFromFlags(cmd *cobra.Command) rollconf.LogConfig {
	cfg := rollconf.DefaultConfig().Log
	if v, err := cmd.Flags().GetString(rollconf.FlagLogLevel); err == nil {
		cfg.Level = v
	}
	if v, err := cmd.Flags().GetString(rollconf.FlagLogFormat); err == nil {
		cfg.Format = v
	}
	if v, err := cmd.Flags().GetBool(rollconf.FlagLogTrace); err == nil {
		cfg.Trace = v
	}
	return cfg
}

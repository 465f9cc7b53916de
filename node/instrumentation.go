package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/inertialabsxyz/movement/block"
	"github.com/inertialabsxyz/movement/pkg/config"
)

const (
	instrumentationShutdownTimeout = 9 * time.Second
	readHeaderTimeout              = 10 * time.Second
)

// MetricsProvider returns the block Metrics of a chain.
type MetricsProvider func(chainID string) *block.Metrics

// DefaultMetricsProvider returns Metrics build using Prometheus client library
// if Prometheus is enabled. Otherwise, it returns no-op Metrics.
func DefaultMetricsProvider(config *config.InstrumentationConfig) MetricsProvider {
	return func(chainID string) *block.Metrics {
		if config != nil && config.Prometheus {
			return block.PrometheusMetrics(config.Namespace, "chain_id", chainID)
		}
		return block.NopMetrics()
	}
}

type instrumentationServers struct {
	prometheus *http.Server
	pprof      *http.Server
	logger     zerolog.Logger
}

// startInstrumentation starts the Prometheus and pprof HTTP servers that are enabled.
func (n *PartialNode) startInstrumentation() *instrumentationServers {
	servers := &instrumentationServers{logger: n.logger}
	cfg := n.cfg.Instrumentation
	if cfg == nil {
		return servers
	}

	if cfg.IsPrometheusEnabled() {
		prometheusMux := http.NewServeMux()
		prometheusMux.Handle("/metrics", promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: cfg.MaxOpenConnections},
			),
		))
		servers.prometheus = &http.Server{
			Addr:              cfg.PrometheusListenAddr,
			Handler:           prometheusMux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go servers.listen("Prometheus", servers.prometheus)
	}

	if cfg.IsPprofEnabled() {
		pprofMux := http.NewServeMux()
		pprofMux.HandleFunc("/debug/pprof/", pprof.Index)
		pprofMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		pprofMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		pprofMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		pprofMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		for _, profile := range []string{"goroutine", "heap", "threadcreate", "block", "mutex", "allocs"} {
			pprofMux.Handle("/debug/pprof/"+profile, pprof.Handler(profile))
		}
		servers.pprof = &http.Server{
			Addr:              cfg.GetPprofListenAddr(),
			Handler:           pprofMux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go servers.listen("pprof", servers.pprof)
	}

	return servers
}

func (s *instrumentationServers) listen(name string, srv *http.Server) {
	s.logger.Info().Str("addr", srv.Addr).Msgf("started %s HTTP server", name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msgf("%s HTTP server ListenAndServe", name)
	}
}

func (s *instrumentationServers) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), instrumentationShutdownTimeout)
	defer cancel()

	var shutdownMultiErr error
	if s.prometheus != nil {
		if err := s.prometheus.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownMultiErr = errors.Join(shutdownMultiErr, fmt.Errorf("shutting down Prometheus server: %w", err))
		}
	}
	if s.pprof != nil {
		if err := s.pprof.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownMultiErr = errors.Join(shutdownMultiErr, fmt.Errorf("shutting down pprof server: %w", err))
		}
	}
	return shutdownMultiErr
}

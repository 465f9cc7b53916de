package telemetry

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/inertialabsxyz/movement/pkg/config"
)

// ExtractTraceContext reads the trace headers of incoming requests into the request context,
// so spans started by the REST handlers join the trace of the caller.
func ExtractTraceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		carrier := propagation.HeaderCarrier(r.Header)
		next.ServeHTTP(w, r.WithContext(otel.GetTextMapPropagator().Extract(r.Context(), carrier)))
	})
}

// injectingTransport writes the trace context of each outgoing request into its headers.
// It records no spans of its own.
type injectingTransport struct {
	next       http.RoundTripper
	propagator propagation.TextMapPropagator
}

func (t *injectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrip must not modify the caller's request
	out := req.Clone(req.Context())
	t.propagator.Inject(out.Context(), propagation.HeaderCarrier(out.Header))
	return t.next.RoundTrip(out)
}

// NewPropagatingHTTPClient wraps base, or http.DefaultTransport when base is nil, so the
// requests it sends carry the trace context of their own context.
func NewPropagatingHTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &injectingTransport{
		next:       base,
		propagator: otel.GetTextMapPropagator(),
	}}
}

// RPCHTTPClientFromConfig returns the HTTP client REST API clients should use: a propagating
// one when tracing is enabled, nil otherwise.
func RPCHTTPClientFromConfig(cfg *config.InstrumentationConfig) *http.Client {
	if !cfg.IsTracingEnabled() {
		return nil
	}
	return NewPropagatingHTTPClient(nil)
}

// Package testutil holds span assertions shared by the tracing decorator tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// RequireAttribute asserts that an attribute with the given key exists and has the expected value.
// Unsigned heights are recorded as int64 attributes and compared as such.
func RequireAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expected interface{}) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) != key {
			continue
		}
		switch v := expected.(type) {
		case string:
			require.Equal(t, v, attr.Value.AsString())
		case int64:
			require.Equal(t, v, attr.Value.AsInt64())
		case int:
			require.Equal(t, int64(v), attr.Value.AsInt64())
		case uint64:
			require.Equal(t, int64(v), attr.Value.AsInt64())
		case bool:
			require.Equal(t, v, attr.Value.AsBool())
		default:
			t.Fatalf("unsupported attribute type: %T", expected)
		}
		return
	}
	t.Fatalf("attribute %s not found", key)
}

// NewRecorder installs a span recorder on a fresh tracer provider and returns both.
func NewRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	return sr, tp
}

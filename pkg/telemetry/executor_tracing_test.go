package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	coreda "github.com/inertialabsxyz/movement/core/da"
	coreexec "github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/telemetry/testutil"
)

// setupTestTracing creates a traced executor with an in-memory span recorder for testing
func setupTestTracing(t *testing.T, inner coreexec.Executor) (coreexec.Executor, *tracetest.SpanRecorder) {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(
		trace.WithSpanProcessor(sr),
	)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	otel.SetTracerProvider(tp)

	return WithTracingExecutor(inner), sr
}

// runOne executes a single batch through the traced executor and returns it once the
// background service stopped.
func runOne(t *testing.T, traced coreexec.Executor) {
	t.Helper()

	batches := coreexec.NewBatchChannel(1)
	_, run, err := traced.Background(batches, nil, coreexec.DefaultConfig())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- run(context.Background()) }()

	require.NoError(t, batches.Send(context.Background(), coreda.Batch{DAHeight: 1, Transactions: [][]byte{[]byte("a=1")}}))
	select {
	case res := <-traced.Results():
		require.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no execution result")
	}
	batches.CloseSend()
	require.NoError(t, <-done)
}

func TestWithTracingExecutor_Background(t *testing.T) {
	traced, sr := setupTestTracing(t, coreexec.NewDummyExecutor())

	runOne(t, traced)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	require.Equal(t, "Executor.Background", span.Name())
	require.Equal(t, codes.Unset, span.Status().Code)
	testutil.RequireAttribute(t, span.Attributes(), "chain.id", "movement")
	testutil.RequireAttribute(t, span.Attributes(), "forwarding.capacity", 1)
}

func TestWithTracingExecutor_Background_AlreadyStarted(t *testing.T) {
	inner := coreexec.NewDummyExecutor()
	traced, sr := setupTestTracing(t, inner)

	_, _, err := inner.Background(coreexec.NewBatchChannel(1), nil, coreexec.DefaultConfig())
	require.NoError(t, err)

	_, run, err := traced.Background(coreexec.NewBatchChannel(1), nil, coreexec.DefaultConfig())
	require.ErrorIs(t, err, coreexec.ErrBackgroundStarted)
	require.Nil(t, run)
	require.Empty(t, sr.Ended())
}

func TestWithTracingExecutor_SetFinal_Success(t *testing.T) {
	inner := coreexec.NewDummyExecutor()
	traced, sr := setupTestTracing(t, inner)
	runOne(t, traced)

	require.NoError(t, traced.SetFinal(context.Background(), 1))
	require.True(t, inner.IsFinal(1))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	span := spans[1]
	require.Equal(t, "Executor.SetFinal", span.Name())
	require.Equal(t, codes.Unset, span.Status().Code)
	testutil.RequireAttribute(t, span.Attributes(), "block.height", int64(1))
}

func TestWithTracingExecutor_SetFinal_Error(t *testing.T) {
	traced, sr := setupTestTracing(t, coreexec.NewDummyExecutor())

	err := traced.SetFinal(context.Background(), 7)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	require.Equal(t, codes.Error, span.Status().Code)
	require.Equal(t, err.Error(), span.Status().Description)
	require.Len(t, span.Events(), 1)
	require.Equal(t, "exception", span.Events()[0].Name)
}

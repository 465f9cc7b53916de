package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inertialabsxyz/movement/core/execution"
)

// tracedExecutor wraps a core execution.Executor and records spans for key operations.
type tracedExecutor struct {
	inner  execution.Executor
	tracer trace.Tracer
}

// WithTracingExecutor decorates an Executor with OpenTelemetry spans.
func WithTracingExecutor(inner execution.Executor) execution.Executor {
	return &tracedExecutor{
		inner:  inner,
		tracer: otel.Tracer("movement/execution"),
	}
}

func (t *tracedExecutor) Background(batches *execution.BatchChannel, acks <-chan []execution.TxResult, cfg execution.Config) (execution.Context, execution.BackgroundFunc, error) {
	execCtx, run, err := t.inner.Background(batches, acks, cfg)
	if err != nil {
		return nil, nil, err
	}

	traced := func(ctx context.Context) error {
		ctx, span := t.tracer.Start(ctx, "Executor.Background",
			trace.WithAttributes(
				attribute.String("chain.id", cfg.ChainID),
				attribute.Int("forwarding.capacity", batches.Cap()),
			),
		)
		defer span.End()

		err := run(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
	return execCtx, traced, nil
}

func (t *tracedExecutor) Results() <-chan execution.Result {
	return t.inner.Results()
}

func (t *tracedExecutor) SetFinal(ctx context.Context, blockHeight uint64) error {
	ctx, span := t.tracer.Start(ctx, "Executor.SetFinal",
		trace.WithAttributes(
			attribute.Int64("block.height", int64(blockHeight)),
		),
	)
	defer span.End()

	err := t.inner.SetFinal(ctx, blockHeight)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *tracedExecutor) Halt() {
	t.inner.Halt()
}

package da

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreda "github.com/inertialabsxyz/movement/core/da"
)

type tracedClient struct {
	inner  coreda.Client
	tracer trace.Tracer
}

// WithTracingClient decorates the DA client with OpenTelemetry spans.
func WithTracingClient(inner coreda.Client) coreda.Client {
	return &tracedClient{
		inner:  inner,
		tracer: otel.Tracer("movement/da"),
	}
}

func (t *tracedClient) SubmitBatch(ctx context.Context, batch coreda.Batch) (uint64, error) {
	ctx, span := t.tracer.Start(ctx, "DA.SubmitBatch",
		trace.WithAttributes(attribute.Int("tx.count", batch.Len())),
	)
	defer span.End()

	height, err := t.inner.SubmitBatch(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int64("da.height", int64(height)))
	return height, nil
}

func (t *tracedClient) StreamReadFromHeight(ctx context.Context, height uint64) (coreda.Stream, error) {
	ctx, span := t.tracer.Start(ctx, "DA.StreamReadFromHeight",
		trace.WithAttributes(attribute.Int64("da.height", int64(height))),
	)
	defer span.End()

	stream, err := t.inner.StreamReadFromHeight(ctx, height)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &tracedStream{inner: stream, tracer: t.tracer}, nil
}

func (t *tracedClient) Close() {
	t.inner.Close()
}

type tracedStream struct {
	inner  coreda.Stream
	tracer trace.Tracer
}

func (s *tracedStream) Next(ctx context.Context) (coreda.Batch, error) {
	ctx, span := s.tracer.Start(ctx, "DA.Stream.Next")
	defer span.End()

	batch, err := s.inner.Next(ctx)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return batch, err
	}
	span.SetAttributes(
		attribute.Int64("da.height", int64(batch.DAHeight)),
		attribute.Int("tx.count", batch.Len()),
	)
	return batch, nil
}

func (s *tracedStream) Close() error {
	return s.inner.Close()
}

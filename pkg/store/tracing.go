package store

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ SyncStore = (*tracedSyncStore)(nil)

type tracedSyncStore struct {
	inner  SyncStore
	tracer trace.Tracer
}

// WithTracingSyncStore wraps a SyncStore with OpenTelemetry tracing.
func WithTracingSyncStore(inner SyncStore) SyncStore {
	return &tracedSyncStore{
		inner:  inner,
		tracer: otel.Tracer("movement/store"),
	}
}

func (t *tracedSyncStore) InitializeSyncedHeight(ctx context.Context, height uint64) error {
	ctx, span := t.tracer.Start(ctx, "SyncStore.InitializeSyncedHeight",
		trace.WithAttributes(attribute.Int64("height", int64(height))),
	)
	defer span.End()

	err := t.inner.InitializeSyncedHeight(ctx, height)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *tracedSyncStore) GetSyncedHeight(ctx context.Context) (uint64, error) {
	ctx, span := t.tracer.Start(ctx, "SyncStore.GetSyncedHeight")
	defer span.End()

	height, err := t.inner.GetSyncedHeight(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return height, err
	}

	span.SetAttributes(attribute.Int64("height", int64(height)))
	return height, nil
}

func (t *tracedSyncStore) SetSyncedHeight(ctx context.Context, height uint64) error {
	ctx, span := t.tracer.Start(ctx, "SyncStore.SetSyncedHeight",
		trace.WithAttributes(attribute.Int64("height", int64(height))),
	)
	defer span.End()

	err := t.inner.SetSyncedHeight(ctx, height)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *tracedSyncStore) Close() error {
	return t.inner.Close()
}

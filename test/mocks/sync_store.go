package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/inertialabsxyz/movement/pkg/store"
)

// NewMockSyncStore creates a new instance of MockSyncStore that asserts its expectations on cleanup.
func NewMockSyncStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSyncStore {
	m := &MockSyncStore{}
	m.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockSyncStore is a mock implementation of store.SyncStore.
type MockSyncStore struct {
	mock.Mock
}

var _ store.SyncStore = (*MockSyncStore)(nil)

// InitializeSyncedHeight implements the store.SyncStore interface.
func (m *MockSyncStore) InitializeSyncedHeight(ctx context.Context, height uint64) error {
	args := m.Called(ctx, height)
	return args.Error(0)
}

// GetSyncedHeight implements the store.SyncStore interface.
func (m *MockSyncStore) GetSyncedHeight(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

// SetSyncedHeight implements the store.SyncStore interface.
func (m *MockSyncStore) SetSyncedHeight(ctx context.Context, height uint64) error {
	args := m.Called(ctx, height)
	return args.Error(0)
}

// Close implements the store.SyncStore interface.
func (m *MockSyncStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

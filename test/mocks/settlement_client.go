// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/inertialabsxyz/movement/pkg/settlement"
)

// NewMockSettlementClient creates a new instance of MockSettlementClient.
// It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockSettlementClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSettlementClient {
	m := &MockSettlementClient{}
	m.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockSettlementClient is a mock implementation of settlement.Client.
type MockSettlementClient struct {
	mock.Mock
}

var _ settlement.Client = (*MockSettlementClient)(nil)

// PostCommitment implements the settlement.Client interface.
func (m *MockSettlementClient) PostCommitment(ctx context.Context, c settlement.Commitment) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// StreamAccepted implements the settlement.Client interface.
func (m *MockSettlementClient) StreamAccepted(ctx context.Context) (<-chan settlement.Commitment, <-chan error, error) {
	args := m.Called(ctx)
	var (
		accepted <-chan settlement.Commitment
		errs     <-chan error
	)
	if v := args.Get(0); v != nil {
		accepted = v.(<-chan settlement.Commitment)
	}
	if v := args.Get(1); v != nil {
		errs = v.(<-chan error)
	}
	return accepted, errs, args.Error(2)
}

// Close implements the settlement.Client interface.
func (m *MockSettlementClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

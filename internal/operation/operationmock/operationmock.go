// Package operationmock has testify mocks of the operation interfaces.
package operationmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/reviewdata/internal/operation"
)

// MockExecutor is a mock of operation.Executor.
type MockExecutor struct {
	mock.Mock
}

var _ operation.Executor = (*MockExecutor)(nil)

// NewMockExecutor returns a mock that asserts its expectations on test cleanup.
func NewMockExecutor(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockExecutor {
	m := &MockExecutor{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockExecutor) Execute(ctx context.Context, op operation.Op) (any, error) {
	args := m.Called(ctx, op)
	return args.Get(0), args.Error(1)
}

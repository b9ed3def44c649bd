// Package storagemock has testify mocks of the storage interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage"
)

// MockDocumentStore is a mock of storage.DocumentStore.
type MockDocumentStore struct {
	mock.Mock
}

var _ storage.DocumentStore = (*MockDocumentStore)(nil)

// NewMockDocumentStore returns a mock that asserts its expectations on test cleanup.
func NewMockDocumentStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockDocumentStore {
	m := &MockDocumentStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDocumentStore) Fetch(ctx context.Context, path string) (*model.Document, error) {
	args := m.Called(ctx, path)
	var doc *model.Document
	if v := args.Get(0); v != nil {
		doc = v.(*model.Document)
	}
	return doc, args.Error(1)
}

func (m *MockDocumentStore) Write(ctx context.Context, path string, content []byte, version string) (string, error) {
	args := m.Called(ctx, path, content, version)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentStore) Delete(ctx context.Context, path string, version string) error {
	args := m.Called(ctx, path, version)
	return args.Error(0)
}

func (m *MockDocumentStore) List(ctx context.Context, path string) ([]model.Entry, error) {
	args := m.Called(ctx, path)
	var entries []model.Entry
	if v := args.Get(0); v != nil {
		entries = v.([]model.Entry)
	}
	return entries, args.Error(1)
}

func (m *MockDocumentStore) UploadBinary(ctx context.Context, path string, data []byte, version string) (string, error) {
	args := m.Called(ctx, path, data, version)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentStore) DownloadBinary(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

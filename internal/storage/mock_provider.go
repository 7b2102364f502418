package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of Store for exercising write failures.
type MockStore struct {
	mock.Mock
}

// PutObject drains body so callers streaming into it complete, then returns
// the configured URI and error.
func (m *MockStore) PutObject(ctx context.Context, path string, contentType string, body io.Reader) (string, error) {
	if body != nil {
		_, _ = io.Copy(io.Discard, body)
	}
	args := m.Called(ctx, path, contentType)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// GetObject returns the configured reader and error.
func (m *MockStore) GetObject(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1) //nolint:wrapcheck
}

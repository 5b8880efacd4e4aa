// Package mocks provides mock implementations for testing.
package mocks

import "context"

// IndexAdmin is a mock implementation of ports.IndexAdmin.
type IndexAdmin struct {
	EnsureErr error
	DropErr   error

	// Call tracking
	EnsureIndexCallCount int
	DropIndexCallCount   int
	LastDimension        int
}

// EnsureIndex returns the configured error.
func (m *IndexAdmin) EnsureIndex(ctx context.Context, dimension int) error {
	m.EnsureIndexCallCount++
	m.LastDimension = dimension
	return m.EnsureErr
}

// DropIndex returns the configured error.
func (m *IndexAdmin) DropIndex(ctx context.Context) error {
	m.DropIndexCallCount++
	return m.DropErr
}

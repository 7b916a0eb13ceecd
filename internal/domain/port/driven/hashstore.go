// Package driven defines the outbound ports the application depends on.
package driven

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a group has no value under the requested id.
var ErrNotFound = errors.New("not found")

// HashStore is a two-level string map: group -> id -> value. Adapters store
// values opaquely; encryption happens above this port. Concurrent writers to
// the same id are last-write-wins.
type HashStore interface {
	// HGet returns the value stored under (group, id), or ErrNotFound.
	HGet(ctx context.Context, group, id string) (string, error)

	// HSet stores or replaces the value under (group, id).
	HSet(ctx context.Context, group, id, value string) error

	// HKeys lists every id in group. A missing group yields an empty slice.
	HKeys(ctx context.Context, group string) ([]string, error)
}

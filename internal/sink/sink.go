// Package sink provides the storage collaborators behind the vault: where
// sealed records live. The codec hands sinks opaque bytes and never looks
// inside; variants are selected once at construction.
package sink

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("sink: record not found")

// Sink moves opaque byte blobs keyed by session ID.
type Sink interface {
	// ReadBytes returns the stored blob, or ErrNotFound.
	ReadBytes(ctx context.Context, key string) ([]byte, error)
	// WriteBytes stores a blob, replacing any previous value.
	WriteBytes(ctx context.Context, key string, data []byte) error
	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Package bridge is the durable mailbox coupling the signal engine to the
// executor. Each key behaves as a single-writer/single-reader slot with
// last-value-wins semantics: a write replaces the previous record atomically,
// and a reader either sees a complete record or none at all.
package bridge

import (
	"context"
	"errors"
)

// ErrNoRecord is returned by Read when a slot has never been written.
var ErrNoRecord = errors.New("bridge: no record")

// Slot is the storage abstraction under the mailboxes. Implementations must
// guarantee that Read never observes a partially written record.
type Slot interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
}

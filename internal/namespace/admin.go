package namespace

import (
	"context"
	"fmt"
)

// Purger deletes all vectors in a namespace. Satisfied by the vector
// store implementations.
type Purger interface {
	DeleteNamespace(ctx context.Context, ns string) error
}

// Admin performs destructive namespace operations: purging a namespace
// from the vector store and dropping its history entry together.
type Admin struct {
	purger  Purger
	history *Store
}

// NewAdmin creates a namespace admin.
func NewAdmin(purger Purger, history *Store) *Admin {
	return &Admin{purger: purger, history: history}
}

// Purge deletes all vectors in ns and removes it from the history.
// Irreversible. The history entry is removed even if the vector store
// no longer knows the namespace, so the two can re-converge after an
// out-of-band index wipe.
func (a *Admin) Purge(ctx context.Context, ns string) error {
	if ns == "" {
		return fmt.Errorf("namespace name is empty")
	}
	if err := a.purger.DeleteNamespace(ctx, ns); err != nil {
		return fmt.Errorf("purge namespace %q: %w", ns, err)
	}
	if err := a.history.Remove(ns); err != nil {
		return fmt.Errorf("remove history for %q: %w", ns, err)
	}
	return nil
}

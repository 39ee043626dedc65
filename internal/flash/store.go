package flash

import (
	"context"
	"fmt"
	"log/slog"
)

// Store keeps flash messages per session until they are popped.
type Store interface {
	// Push appends message to the queue of session.
	Push(ctx context.Context, session, message string) error
	// Pop returns all queued messages of session in insertion order and clears the queue.
	Pop(ctx context.Context, session string) ([]string, error)
	Close() error
}

// NewStore creates the store selected by storeType ("memory", "sqlite" or "redis").
func NewStore(storeType, connectionString string) (store Store, err error) {
	switch storeType {
	case "", "memory":
		store = NewMemoryStore()
	case "sqlite":
		store, err = NewSQLiteStore(connectionString)
	case "redis":
		store, err = NewRedisStore(connectionString)
	default:
		return nil, fmt.Errorf("unsupported flash store: %s", storeType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s flash store: %w", storeType, err)
	}

	slog.Info("flash store initialized", "type", storeType)
	return store, nil
}

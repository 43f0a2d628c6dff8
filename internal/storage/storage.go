// Package storage provides the key-value stores that hold client state:
// a durable store that survives restarts and a tab-scoped store that lives
// only as long as the console process.
package storage

import (
	"context"
	"fmt"

	"github.com/jetsetgo/warehouse-console/internal/config"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Open builds the durable store selected by the configuration.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		fs, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		rs, err := NewRedisStore(cfg)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

package storage

import (
	"fmt"
	"io"
	"time"
)

// Options selects and configures a Store backend.
type Options struct {
	// Backend is "file", "memory" or "redis". Empty means file.
	Backend string

	// Dir is the artifact directory of the file backend.
	Dir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// New creates a store for the configured backend.
//
// Supported backends:
//   - "file": two flat files in Options.Dir (default)
//   - "memory": process-local store
//   - "redis": shared store on Options.RedisAddr
//
// The returned closer releases backend connections and is always non-nil.
func New(opts Options) (Store, io.Closer, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileStore(opts.Dir), nopCloser{}, nil
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "redis":
		store, err := NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s (must be file, memory, or redis)", opts.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

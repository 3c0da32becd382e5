package driven

import "context"

// MetaStore persists small opaque vault-level values (such as the wrapped vault key).
type MetaStore interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// PutIfAbsent stores value under key unless the key already exists.
	// It reports whether the value was written.
	PutIfAbsent(ctx context.Context, key, value string) (bool, error)
}

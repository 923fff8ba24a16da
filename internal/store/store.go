// Package store holds the ephemeral key-value state used by the login flow:
// pending OTP challenges and failed-login windows.
package store

import (
	"context"
	"errors"
	"time"
)

// Mutation tells Update what to do with the value returned by an UpdateFunc
type Mutation int

const (
	// Keep leaves the stored value untouched
	Keep Mutation = iota
	// Save writes the returned value
	Save
	// Remove deletes the key
	Remove
)

// ErrConflict is returned when an optimistic update keeps losing races
var ErrConflict = errors.New("store: too many concurrent updates")

// UpdateFunc receives the current value and whether it exists. It may be
// invoked more than once for one Update call when a shared backend has to
// retry, so it must assign any captured results on every path.
type UpdateFunc[T any] func(current T, exists bool) (T, Mutation, error)

// Store is the capability the login flow needs from a key-value backend.
// Update is atomic per key.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc[T]) error
	// Prune deletes every entry for which remove returns true
	Prune(ctx context.Context, remove func(key string, value T) bool) (int, error)
}

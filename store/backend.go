package store

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every I/O failure reported by a backend.
var ErrUnavailable = errors.New("store unavailable")

// ErrEmptyKey is returned when an operation is given an empty key.
var ErrEmptyKey = errors.New("store: empty key")

// Entry is one key/value pair written by [Backend.Put].
type Entry struct {
	Key   string
	Value []byte
}

// Backend is the persistence medium for a single namespace.
type Backend interface {
	// Get reads all keys in one snapshot. Missing keys yield nil.
	Get(ctx context.Context, keys ...string) ([][]byte, error)
	// Put replaces the value of every given key atomically.
	Put(ctx context.Context, entries ...Entry) error
	// Delete removes keys. Deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
	// DeleteIf removes keys only while guardKey holds expected.
	DeleteIf(ctx context.Context, guardKey string, expected []byte, keys ...string) (bool, error)
}

// Change describes a write observed by a [Watcher].
type Change struct {
	Keys    []string `json:"keys"`
	Deleted bool     `json:"deleted"`
	Writer  string   `json:"writer,omitempty"`
}

// Watcher is implemented by backends that can report writes made by other
// writers sharing the namespace. The returned channel is closed when ctx is
// done.
//
// A change is a hint to re-read Keys, not a value. Implementations must not
// lose changes; they may merge a backlog into one change, in which case
// Writer is empty and Deleted is set only if every merged write deleted.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

type writerKey struct{}

// WithWriter tags writes issued with ctx as coming from writer id.
func WithWriter(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, writerKey{}, id)
}

// WriterFrom returns the writer id attached by [WithWriter], if any.
func WriterFrom(ctx context.Context) string {
	id, _ := ctx.Value(writerKey{}).(string)
	return id
}

func checkKeys(keys []string) error {
	for _, k := range keys {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return nil
}

func entryKeys(entries []Entry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

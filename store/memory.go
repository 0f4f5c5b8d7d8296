package store

import (
	"bytes"
	"context"
	"slices"
	"sync"
)

const watchBuffer = 16

// Memory is an in-process [Backend]. Controllers sharing one Memory behave
// like browser tabs sharing an origin: each sees the other's writes through
// Watch.
type Memory struct {
	mu       sync.Mutex
	values   map[string][]byte
	watchers map[*memoryWatcher]struct{}
}

// NewMemory returns an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string][]byte),
		watchers: make(map[*memoryWatcher]struct{}),
	}
}

// Get implements [Backend].
func (m *Memory) Get(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = cloneBytes(m.values[k])
	}
	return out, nil
}

// Put implements [Backend].
func (m *Memory) Put(ctx context.Context, entries ...Entry) error {
	keys := entryKeys(entries)
	if err := checkKeys(keys); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.values[e.Key] = cloneBytes(e.Value)
	}
	m.broadcastLocked(Change{Keys: keys, Writer: WriterFrom(ctx)})
	return nil
}

// Delete implements [Backend].
func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	if err := checkKeys(keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteLocked(ctx, keys)
	return nil
}

// DeleteIf implements [Backend].
func (m *Memory) DeleteIf(ctx context.Context, guardKey string, expected []byte, keys ...string) (bool, error) {
	if err := checkKeys(append([]string{guardKey}, keys...)); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.values[guardKey]
	if !ok || !bytes.Equal(current, expected) {
		return false, nil
	}
	m.deleteLocked(ctx, keys)
	return true, nil
}

func (m *Memory) deleteLocked(ctx context.Context, keys []string) {
	for _, k := range keys {
		delete(m.values, k)
	}
	m.broadcastLocked(Change{Keys: keys, Deleted: true, Writer: WriterFrom(ctx)})
}

// Watch implements [Watcher]. Writers never block on a slow reader and no
// change is lost: once a reader falls watchBuffer changes behind, the backlog
// is merged into one change with no writer, telling it to re-read.
func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	w := &memoryWatcher{
		out:  make(chan Change),
		wake: make(chan struct{}, 1),
	}
	m.mu.Lock()
	m.watchers[w] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer close(w.out)
		w.pump(ctx)
		m.mu.Lock()
		delete(m.watchers, w)
		m.mu.Unlock()
	}()
	return w.out, nil
}

func (m *Memory) broadcastLocked(c Change) {
	for w := range m.watchers {
		w.add(c)
	}
}

type memoryWatcher struct {
	out  chan Change
	wake chan struct{}

	mu      sync.Mutex
	pending []Change
}

func (w *memoryWatcher) add(c Change) {
	c.Keys = append([]string(nil), c.Keys...)

	w.mu.Lock()
	if len(w.pending) < watchBuffer {
		w.pending = append(w.pending, c)
	} else {
		last := &w.pending[len(w.pending)-1]
		for _, k := range c.Keys {
			if !slices.Contains(last.Keys, k) {
				last.Keys = append(last.Keys, k)
			}
		}
		last.Deleted = last.Deleted && c.Deleted
		last.Writer = ""
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *memoryWatcher) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}

		w.mu.Lock()
		batch := w.pending
		w.pending = nil
		w.mu.Unlock()

		for _, c := range batch {
			select {
			case w.out <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

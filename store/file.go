package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileDocument is the on-disk layout of one namespace. Values are opaque so
// they are kept as base64 through encoding/json's []byte handling.
type fileDocument struct {
	Writer  string            `json:"writer,omitempty"`
	Entries map[string][]byte `json:"entries"`
}

// File is a [Backend] that keeps one JSON document per namespace under dir.
// Writes go to a temporary file that is renamed over the document, so a
// reader never observes a half-written namespace. Concurrent writers are
// serialized within a process only.
type File struct {
	mu   sync.Mutex
	dir  string
	path string
}

// NewFile opens (creating if needed) the namespace document under dir.
func NewFile(dir, namespace string) (*File, error) {
	if namespace == "" {
		namespace = "default"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", ErrUnavailable, err)
	}
	return &File{
		dir:  dir,
		path: filepath.Join(dir, namespace+".json"),
	}, nil
}

// Path returns the document path.
func (f *File) Path() string { return f.path }

func (f *File) read() (fileDocument, error) {
	doc := fileDocument{Entries: map[string][]byte{}}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		// A damaged document holds nothing we can trust.
		return fileDocument{Entries: map[string][]byte{}}, nil
	}
	if doc.Entries == nil {
		doc.Entries = map[string][]byte{}
	}
	return doc, nil
}

func (f *File) write(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrUnavailable, err)
	}
	tmp, err := os.CreateTemp(f.dir, ".sessionkit-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get implements [Backend].
func (f *File) Get(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = doc.Entries[k]
	}
	return out, nil
}

// Put implements [Backend].
func (f *File) Put(ctx context.Context, entries ...Entry) error {
	if err := checkKeys(entryKeys(entries)); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	for _, e := range entries {
		doc.Entries[e.Key] = cloneBytes(e.Value)
	}
	doc.Writer = WriterFrom(ctx)
	return f.write(doc)
}

// Delete implements [Backend].
func (f *File) Delete(ctx context.Context, keys ...string) error {
	if err := checkKeys(keys); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	return f.deleteLocked(ctx, doc, keys)
}

// DeleteIf implements [Backend].
func (f *File) DeleteIf(ctx context.Context, guardKey string, expected []byte, keys ...string) (bool, error) {
	if err := checkKeys(append([]string{guardKey}, keys...)); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return false, err
	}
	current, ok := doc.Entries[guardKey]
	if !ok || !bytes.Equal(current, expected) {
		return false, nil
	}
	if err := f.deleteLocked(ctx, doc, keys); err != nil {
		return false, err
	}
	return true, nil
}

func (f *File) deleteLocked(ctx context.Context, doc fileDocument, keys []string) error {
	changed := false
	for _, k := range keys {
		if _, ok := doc.Entries[k]; ok {
			delete(doc.Entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	doc.Writer = WriterFrom(ctx)
	return f.write(doc)
}

// Watch implements [Watcher] with fsnotify on the store directory. Each
// replacement of the document is diffed against the previous contents and
// reported as a [Change] carrying the writer recorded in the document.
func (f *File) Watch(ctx context.Context) (<-chan Change, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create file watcher: %v", ErrUnavailable, err)
	}
	if err := w.Add(f.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: watch %s: %v", ErrUnavailable, f.dir, err)
	}

	f.mu.Lock()
	last, err := f.read()
	f.mu.Unlock()
	if err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
					continue
				}
				f.mu.Lock()
				cur, err := f.read()
				f.mu.Unlock()
				if err != nil {
					continue
				}
				change, ok := diffDocuments(last, cur)
				last = cur
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

func diffDocuments(prev, cur fileDocument) (Change, bool) {
	var change Change
	for k, v := range cur.Entries {
		if old, ok := prev.Entries[k]; !ok || !bytes.Equal(old, v) {
			change.Keys = append(change.Keys, k)
		}
	}
	for k := range prev.Entries {
		if _, ok := cur.Entries[k]; !ok {
			change.Keys = append(change.Keys, k)
			change.Deleted = true
		}
	}
	change.Writer = cur.Writer
	return change, len(change.Keys) > 0
}

// internal/store/file.go
//
// JSON-file backend.
//
// Context
// -------
// The whole store is one JSON document, `{scope: {key: value}}`, held in
// memory and rewritten on every mutation.  Writes go to a temp file in the
// same directory that is then renamed over the target, so a crash leaves
// either the old or the new document, never a torn one.  The file is
// created with mode 0600 because it holds bearer tokens.
//
// Suitable for a single frontend instance.  Several processes sharing
// one file will overwrite each other; use the SQL or Redis backends there.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a durable single-node backend.
type File struct {
	path string

	mu   sync.Mutex
	data map[string]map[string]string
}

// OpenFile loads path, creating its directory when missing.  A missing file
// is an empty store.
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	f := &File{path: path, data: make(map[string]map[string]string)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, err
	case len(raw) == 0:
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("store file %s: %w", path, err)
	}
	return f, nil
}

func (f *File) Load(ctx context.Context, scope, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[scope][key]
	return v, ok, nil
}

func (f *File) Save(ctx context.Context, scope, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	kv, ok := f.data[scope]
	if !ok {
		kv = make(map[string]string, 3)
		f.data[scope] = kv
	}
	prev, had := kv[key]
	kv[key] = value
	if err := f.flush(); err != nil {
		if had {
			kv[key] = prev
		} else {
			delete(kv, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(ctx context.Context, scope, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	kv, ok := f.data[scope]
	if !ok {
		return nil
	}
	prev, had := kv[key]
	if !had {
		return nil
	}
	delete(kv, key)
	if len(kv) == 0 {
		delete(f.data, scope)
	}
	if err := f.flush(); err != nil {
		if _, ok := f.data[scope]; !ok {
			f.data[scope] = kv
		}
		kv[key] = prev
		return err
	}
	return nil
}

func (f *File) Close() error { return nil }

// flush writes f.data atomically.  Caller holds f.mu.
func (f *File) flush() error {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".sessions-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, f.path)
}

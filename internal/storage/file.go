package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File keeps every scope in a single JSON document that is rewritten on each
// mutation. It suits a single-instance deployment without a database.
type File struct {
	path string

	mu     sync.RWMutex
	scopes map[string]map[string]string
}

func NewFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage file path is required")
	}

	f := &File{
		path:   path,
		scopes: make(map[string]map[string]string),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Get(_ context.Context, scope, key string) (string, error) {
	if err := validate(scope, key); err != nil {
		return "", err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.scopes[scope][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(_ context.Context, scope, key, value string) error {
	if err := validate(scope, key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	kv, ok := f.scopes[scope]
	if !ok {
		kv = make(map[string]string)
		f.scopes[scope] = kv
	}
	prev, existed := kv[key]
	kv[key] = value
	if err := f.persistLocked(); err != nil {
		if existed {
			kv[key] = prev
		} else {
			delete(kv, key)
		}
		return err
	}
	return nil
}

func (f *File) Remove(_ context.Context, scope, key string) error {
	if err := validate(scope, key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	kv, ok := f.scopes[scope]
	if !ok {
		return nil
	}
	prev, existed := kv[key]
	if !existed {
		return nil
	}
	delete(kv, key)
	if len(kv) == 0 {
		delete(f.scopes, scope)
	}
	if err := f.persistLocked(); err != nil {
		kv[key] = prev
		f.scopes[scope] = kv
		return err
	}
	return nil
}

func (f *File) load() error {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read storage file: %w", err)
	}
	if len(b) == 0 {
		return nil
	}

	decoded := make(map[string]map[string]string)
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode storage file: %w", err)
	}
	for scope, kv := range decoded {
		if strings.TrimSpace(scope) == "" || len(kv) == 0 {
			continue
		}
		f.scopes[scope] = kv
	}
	return nil
}

func (f *File) persistLocked() error {
	b, err := json.MarshalIndent(f.scopes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("mkdir storage dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}

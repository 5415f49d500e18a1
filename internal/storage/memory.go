package storage

import (
	"context"
	"sync"
)

type Memory struct {
	mu     sync.RWMutex
	scopes map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{scopes: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, scope, key string) (string, error) {
	if err := validate(scope, key); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.scopes[scope][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, scope, key, value string) error {
	if err := validate(scope, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kv, ok := m.scopes[scope]
	if !ok {
		kv = make(map[string]string)
		m.scopes[scope] = kv
	}
	kv[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, scope, key string) error {
	if err := validate(scope, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kv, ok := m.scopes[scope]
	if !ok {
		return nil
	}
	delete(kv, key)
	if len(kv) == 0 {
		delete(m.scopes, scope)
	}
	return nil
}

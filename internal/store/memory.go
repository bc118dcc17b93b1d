package store

import (
	"context"
	"sync"
)

// Memory keeps every scope in process memory.  Nothing survives a restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Load(ctx context.Context, scope, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[scope][key]
	return v, ok, nil
}

func (m *Memory) Save(ctx context.Context, scope, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kv, ok := m.data[scope]
	if !ok {
		kv = make(map[string]string, 3)
		m.data[scope] = kv
	}
	kv[key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, scope, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if kv, ok := m.data[scope]; ok {
		delete(kv, key)
		if len(kv) == 0 {
			delete(m.data, scope)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }

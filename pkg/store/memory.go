package store

import (
	"context"
	"sync"

	"syncribullet/pkg/types"
)

// Memory keeps everything in process memory.
type Memory struct {
	mu      sync.RWMutex
	configs map[types.ReceiverID]types.UserConfig
	globals types.GlobalSettings
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{configs: make(map[types.ReceiverID]types.UserConfig)}
}

func (m *Memory) Get(_ context.Context, id types.ReceiverID) (types.UserConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[id]
	if !ok {
		return types.UserConfig{}, false, nil
	}
	return cloneConfig(cfg), true, nil
}

func (m *Memory) Update(_ context.Context, id types.ReceiverID, fn func(*types.UserConfig) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := cloneConfig(m.configs[id])
	if err := fn(&cfg); err != nil {
		return err
	}
	m.configs[id] = cfg
	return nil
}

func (m *Memory) Delete(_ context.Context, id types.ReceiverID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.configs, id)
	return nil
}

func (m *Memory) GetGlobal(_ context.Context) (types.GlobalSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return cloneGlobals(m.globals), nil
}

func (m *Memory) UpdateGlobal(_ context.Context, fn func(*types.GlobalSettings) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := cloneGlobals(m.globals)
	if err := fn(&g); err != nil {
		return err
	}
	m.globals = g
	return nil
}

func (m *Memory) Close() error { return nil }

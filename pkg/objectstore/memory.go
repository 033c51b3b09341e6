package objectstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store used by tests and local development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Deleted records every path handed to Delete, including misses.
	Deleted []string
	// FailDelete makes Delete return an error for matching paths.
	FailDelete map[string]error
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, eventID, filename string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := fmt.Sprintf("events/%s/%s", eventID, filename)
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[path] = buf
	return path, nil
}

func (m *Memory) Get(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", path)
	}
	return data, nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailDelete[path]; ok {
		return err
	}
	m.Deleted = append(m.Deleted, path)
	delete(m.objects, path)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) Has(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok
}

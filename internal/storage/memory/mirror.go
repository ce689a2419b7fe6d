package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Mirror keeps uploaded snapshot objects in memory and returns mem:// URIs.
type Mirror struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMirror creates an empty in-memory mirror.
func NewMirror() *Mirror {
	return &Mirror{objects: make(map[string][]byte)}
}

// PutObject stores the full content of r under path.
func (m *Mirror) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return "mem://" + path, nil
}

// Object returns a copy of the stored bytes for path.
func (m *Mirror) Object(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len returns the number of stored objects.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

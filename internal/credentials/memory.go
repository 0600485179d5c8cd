package credentials

import (
	"context"
	"sync"
)

// MemorySlot keeps the value in process memory only.
type MemorySlot struct {
	mu    sync.Mutex
	value string
	set   bool
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Load(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.set, nil
}

func (m *MemorySlot) Save(ctx context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value, m.set = value, true
	return nil
}

func (m *MemorySlot) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value, m.set = "", false
	return nil
}

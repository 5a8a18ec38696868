package session

import (
	"context"
	"encoding/json"
	"sync"
)

// Store is the single persistence port for per-session funnel state. The
// cart, the profile draft and the in-flight selection all serialize through
// it, one canonical key per aggregate, so producers and consumers can never
// drift on key names.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

func CartKey(sessionID string) string    { return "sess:" + sessionID + ":cart" }
func ProfileKey(sessionID string) string { return "sess:" + sessionID + ":profile" }
func FunnelKey(sessionID string) string  { return "sess:" + sessionID + ":funnel" }

// LoadJSON reads and decodes one aggregate. Unparseable persisted state is
// treated as absent; there is no versioning or migration beyond that.
func LoadJSON(ctx context.Context, s Store, key string, v interface{}) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, nil
	}
	return true, nil
}

// SaveJSON encodes and writes one aggregate synchronously.
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data)
}

// Memory is an in-process Store used in unit tests and as a fallback when
// no Redis address is configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

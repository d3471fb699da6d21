package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrModelNotFound   = errors.New("model not found")
	ErrVersionNotFound = errors.New("model version not found")
)

// Registry stores versioned model weights, versions start at 1 and increase by one per publication
type Registry interface {
	Publish(ctx context.Context, name string, payload []byte) (int64, error)
	Latest(ctx context.Context, name string) (int64, []byte, error)
	Get(ctx context.Context, name string, version int64) ([]byte, error)
	Versions(ctx context.Context, name string) ([]int64, error)
	Models(ctx context.Context) ([]string, error)
}

type MemoryRegistry struct {
	lock   sync.RWMutex
	models map[string][][]byte
}

var _ Registry = &MemoryRegistry{}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{models: make(map[string][][]byte)}
}

func (m *MemoryRegistry) Publish(_ context.Context, name string, payload []byte) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.models[name] = append(m.models[name], cp)
	return int64(len(m.models[name])), nil
}

func (m *MemoryRegistry) Latest(_ context.Context, name string) (int64, []byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	versions := m.models[name]
	if len(versions) == 0 {
		return 0, nil, errors.Wrap(ErrModelNotFound, name)
	}
	return int64(len(versions)), versions[len(versions)-1], nil
}

func (m *MemoryRegistry) Get(_ context.Context, name string, version int64) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	versions, ok := m.models[name]
	if !ok {
		return nil, errors.Wrap(ErrModelNotFound, name)
	}
	if version < 1 || version > int64(len(versions)) {
		return nil, errors.Wrapf(ErrVersionNotFound, "%s@%d", name, version)
	}
	return versions[version-1], nil
}

func (m *MemoryRegistry) Versions(_ context.Context, name string) ([]int64, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	versions, ok := m.models[name]
	if !ok {
		return nil, errors.Wrap(ErrModelNotFound, name)
	}
	out := make([]int64, len(versions))
	for i := range versions {
		out[i] = int64(i + 1)
	}
	return out, nil
}

func (m *MemoryRegistry) Models(_ context.Context) ([]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	names := make([]string, 0, len(m.models))
	for name := range m.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

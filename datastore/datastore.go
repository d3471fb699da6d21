// Package datastore keeps the samples of the trials run with DatalogEnabled
package datastore

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
)

var ErrTrialNotFound = errors.New("trial not found in datastore")

// Datastore stores the samples of trials, in tick order
type Datastore interface {
	AddSample(ctx context.Context, sample *types.Sample) error
	Samples(ctx context.Context, trialID string) ([]*types.Sample, error)
	Trials(ctx context.Context) ([]string, error)
	DeleteTrial(ctx context.Context, trialID string) error
}

// Trace loads the samples of a trial as a trace
func Trace(ctx context.Context, d Datastore, trialID string) (*types.Trace, error) {
	samples, err := d.Samples(ctx, trialID)
	if err != nil {
		return nil, err
	}
	trace := types.NewTrace()
	for _, s := range samples {
		trace.Append(s)
	}
	return trace, nil
}

type MemoryDatastore struct {
	lock    sync.RWMutex
	samples map[string][]*types.Sample
}

var _ Datastore = &MemoryDatastore{}

func NewMemoryDatastore() *MemoryDatastore {
	return &MemoryDatastore{
		samples: make(map[string][]*types.Sample),
	}
}

func (m *MemoryDatastore) AddSample(_ context.Context, sample *types.Sample) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.samples[sample.TrialID] = append(m.samples[sample.TrialID], sample)
	return nil
}

func (m *MemoryDatastore) Samples(_ context.Context, trialID string) ([]*types.Sample, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	samples, ok := m.samples[trialID]
	if !ok {
		return nil, errors.Wrap(ErrTrialNotFound, trialID)
	}
	out := make([]*types.Sample, len(samples))
	copy(out, samples)
	return out, nil
}

func (m *MemoryDatastore) Trials(_ context.Context) ([]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	out := make([]string, 0, len(m.samples))
	for id := range m.samples {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryDatastore) DeleteTrial(_ context.Context, trialID string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.samples[trialID]; !ok {
		return errors.Wrap(ErrTrialNotFound, trialID)
	}
	delete(m.samples, trialID)
	return nil
}

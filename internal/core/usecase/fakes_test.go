package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

type staticCreds struct {
	bearer string
}

func (s staticCreds) Credentials(context.Context) domain.Credentials {
	return domain.Credentials{Bearer: s.bearer}
}

type notifierFake struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (f *notifierFake) Notify(notice domain.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice)
}

func (f *notifierFake) all() []domain.Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Notice, len(f.notices))
	copy(out, f.notices)
	return out
}

type metricsFake struct {
	mu       sync.Mutex
	reverts  int
	progress []int
	outcomes []string
}

func (f *metricsFake) RecordRevert(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverts++
}

func (f *metricsFake) RecordUploadProgress(p int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
}

func (f *metricsFake) RecordUploadOutcome(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.values[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.values, key)
	return nil
}

var _ ports.KeyValueStore = (*memoryStore)(nil)

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sujith-eag/timetable-builder/internal/model"
	"github.com/sujith-eag/timetable-builder/internal/repository"
	"github.com/sujith-eag/timetable-builder/pkg/redis"
)

// ── Mock RunRepository ──

type mockRunRepo struct {
	mu      sync.Mutex
	runs    map[string]*model.ScheduleRun
	seq     int
	failErr error // 非空时 Create 返回该错误
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{runs: make(map[string]*model.ScheduleRun)}
}

func (m *mockRunRepo) Create(_ context.Context, run *model.ScheduleRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.seq++
	if run.RunID == "" {
		run.RunID = fmt.Sprintf("run-%04d-0000-0000-0000-000000000000", m.seq)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Date(2026, 3, 2, 9, 0, m.seq, 0, time.UTC)
	}
	for i := range run.Entries {
		run.Entries[i].RunID = run.RunID
	}
	for i := range run.Violations {
		run.Violations[i].RunID = run.RunID
	}
	cp := *run
	m.runs[run.RunID] = &cp
	return nil
}

func (m *mockRunRepo) GetByID(_ context.Context, runID string) (*model.ScheduleRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[runID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, repository.ErrRunNotFound
}

func (m *mockRunRepo) GetLatestByFingerprint(_ context.Context, fingerprint string) (*model.ScheduleRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.ScheduleRun
	for _, r := range m.runs {
		if r.Fingerprint == fingerprint && r.Kind == model.RunSolve && (latest == nil || r.CreatedAt.After(latest.CreatedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, repository.ErrRunNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockRunRepo) List(_ context.Context, filter repository.RunFilter, offset, limit int) ([]model.ScheduleRun, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.ScheduleRun
	for _, r := range m.runs {
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Validation != "" && r.Validation != filter.Validation {
			continue
		}
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockRunRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// ── Mock ResultCache ──

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	sets    int
	failGet bool
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) GetResult(_ context.Context, fingerprint string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failGet {
		return nil, errors.New("connection refused")
	}
	b, ok := m.data[fingerprint]
	if !ok {
		return nil, redis.ErrCacheMiss
	}
	return b, nil
}

func (m *mockCache) SetResult(_ context.Context, fingerprint string, payload []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[fingerprint] = payload
	return nil
}

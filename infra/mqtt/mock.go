package mqtt

import (
	"sync"

	"github.com/gridflex/gridflex/core/model"
)

// MockPublisher records published jobs for tests.
type MockPublisher struct {
	mu        sync.Mutex
	Published []model.Job
	Err       error
}

func (m *MockPublisher) PublishSchedule(job model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Published = append(m.Published, job)
	return nil
}

func (m *MockPublisher) Disconnect() {}

// Jobs returns a snapshot of published jobs.
func (m *MockPublisher) Jobs() []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Job, len(m.Published))
	copy(out, m.Published)
	return out
}

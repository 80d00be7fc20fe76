package usecase

import (
	"context"
	"sync"

	"github.com/totegamma/memories/internal/domain"
)

type mockMemoryRepo struct {
	mu       sync.Mutex
	records  []domain.MemoryRecord
	listErr  error
	appendFn func(domain.MemoryRecord) error
	appends  int
	cleared  bool
}

func (m *mockMemoryRepo) List(ctx context.Context) ([]domain.MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MemoryRecord, len(m.records))
	copy(out, m.records)
	return out, m.listErr
}

func (m *mockMemoryRepo) Get(ctx context.Context, id string) (domain.MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.MemoryRecord{}, domain.NotFoundError{Resource: "memory"}
}

func (m *mockMemoryRepo) Append(ctx context.Context, record domain.MemoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.appendFn != nil {
		if err := m.appendFn(record); err != nil {
			return err
		}
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockMemoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockMemoryRepo) EditDescription(ctx context.Context, id, description string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			if r.DescriptionEquals(description) {
				return false, nil
			}
			d := description
			m.records[i].Description = &d
			return true, nil
		}
	}
	return false, nil
}

func (m *mockMemoryRepo) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.cleared = true
	return nil
}

type mockPublisher struct {
	events []domain.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.Event) error {
	m.events = append(m.events, event)
	return nil
}

type mockCamera struct {
	ref       string
	err       error
	recording bool
}

// ownedMockCamera also owns the media it hands out.
type ownedMockCamera struct {
	mockCamera
	discarded []string
}

func (m *ownedMockCamera) Discard(ctx context.Context, ref string) error {
	m.discarded = append(m.discarded, ref)
	return nil
}

func (m *mockCamera) CapturePhoto(ctx context.Context) (string, error) {
	return m.ref, m.err
}

func (m *mockCamera) StartRecording(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.recording = true
	return nil
}

func (m *mockCamera) StopRecording(ctx context.Context) (string, error) {
	m.recording = false
	return m.ref, m.err
}

type mockGeolocator struct {
	location domain.Location
	err      error
	calls    int
}

func (m *mockGeolocator) CurrentLocation(ctx context.Context) (domain.Location, error) {
	m.calls++
	return m.location, m.err
}

type mockGallery struct {
	saved []string
	err   error
}

func (m *mockGallery) SaveToLibrary(ctx context.Context, ref string) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, ref)
	return nil
}

package usecase

import (
	"context"

	"github.com/totegamma/memories/internal/domain"
)

// MemoryRepository is the record store holding the memory collection.
type MemoryRepository interface {
	List(ctx context.Context) ([]domain.MemoryRecord, error)
	Get(ctx context.Context, id string) (domain.MemoryRecord, error)
	Append(ctx context.Context, record domain.MemoryRecord) error
	Delete(ctx context.Context, id string) (bool, error)
	EditDescription(ctx context.Context, id, description string) (bool, error)
	Clear(ctx context.Context) error
}

// Camera produces media references.
type Camera interface {
	CapturePhoto(ctx context.Context) (string, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (string, error)
}

// MediaDiscarder is implemented by cameras that own the files they
// produce. Discard removes media that never made it into the collection.
type MediaDiscarder interface {
	Discard(ctx context.Context, mediaRef string) error
}

// Geolocator returns the current device position.
type Geolocator interface {
	CurrentLocation(ctx context.Context) (domain.Location, error)
}

// Gallery copies captured media into the device media library.
type Gallery interface {
	SaveToLibrary(ctx context.Context, mediaRef string) error
}

// Publisher announces collection changes.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

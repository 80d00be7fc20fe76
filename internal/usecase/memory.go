package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/totegamma/memories/internal/domain"
	"github.com/totegamma/memories/internal/infra/observability"
)

// MemoryUsecase backs the browse flow.
type MemoryUsecase struct {
	repo    MemoryRepository
	signal  Publisher
	metrics *observability.Collector
}

func NewMemoryUsecase(repo MemoryRepository, signal Publisher, metrics *observability.Collector) *MemoryUsecase {
	return &MemoryUsecase{repo: repo, signal: signal, metrics: metrics}
}

// List returns the collection, newest first unless asked otherwise.
// Unreadable data yields a degraded listing of whatever could be decoded
// instead of an error.
func (uc *MemoryUsecase) List(ctx context.Context, order domain.Order) (domain.Listing, error) {
	records, err := uc.repo.List(ctx)
	if err != nil {
		var readErr *domain.StorageReadError
		if !errors.As(err, &readErr) {
			return domain.Listing{}, err
		}
		if records == nil {
			records = []domain.MemoryRecord{}
		}
		if order == domain.OrderNewestFirst {
			slices.Reverse(records)
		}
		return domain.Listing{Records: records, Degraded: true}, nil
	}

	if order == domain.OrderNewestFirst {
		slices.Reverse(records)
	}
	return domain.Listing{Records: records}, nil
}

func (uc *MemoryUsecase) Get(ctx context.Context, id string) (domain.MemoryRecord, error) {
	return uc.repo.Get(ctx, id)
}

// Map returns the markers of every memory with a location and the region
// that frames them.
func (uc *MemoryUsecase) Map(ctx context.Context) (domain.MapView, error) {
	listing, err := uc.List(ctx, domain.OrderNewestFirst)
	if err != nil {
		return domain.MapView{}, err
	}
	return domain.NewMapView(listing.Records), nil
}

// Summary counts the collection for the home screen.
type Summary struct {
	Total        int  `json:"total"`
	Photos       int  `json:"photos"`
	Videos       int  `json:"videos"`
	WithLocation int  `json:"withLocation"`
	Degraded     bool `json:"degraded,omitempty"`
}

func (uc *MemoryUsecase) Summary(ctx context.Context) (Summary, error) {
	listing, err := uc.List(ctx, domain.OrderOldestFirst)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Total: len(listing.Records), Degraded: listing.Degraded}
	for _, r := range listing.Records {
		switch r.MediaKind {
		case domain.MediaKindPhoto:
			summary.Photos++
		case domain.MediaKindVideo:
			summary.Videos++
		}
		if r.HasLocation() {
			summary.WithLocation++
		}
	}
	return summary, nil
}

func (uc *MemoryUsecase) EditDescription(ctx context.Context, id, description string) (bool, error) {
	changed, err := uc.repo.EditDescription(ctx, id, description)
	if err != nil {
		return false, err
	}
	if changed {
		uc.metrics.DescriptionsEdited.Inc()
		publish(ctx, uc.signal, domain.EventUpdated, id)
	}
	return changed, nil
}

func (uc *MemoryUsecase) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		uc.metrics.MemoriesDeleted.Inc()
		publish(ctx, uc.signal, domain.EventDeleted, id)
	}
	return removed, nil
}

func (uc *MemoryUsecase) Clear(ctx context.Context) error {
	if err := uc.repo.Clear(ctx); err != nil {
		return err
	}
	publish(ctx, uc.signal, domain.EventCleared, "")
	return nil
}

func publish(ctx context.Context, signal Publisher, typ domain.EventType, id string) {
	if signal == nil {
		return
	}
	err := signal.Publish(ctx, domain.Event{
		Type:      typ,
		ID:        id,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.WarnContext(
			ctx, "failed to publish memory event",
			slog.String("error", err.Error()),
			slog.String("type", string(typ)),
			slog.String("module", "signal"),
		)
	}
}

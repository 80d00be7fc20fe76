package device

import (
	"context"

	"github.com/pkg/errors"

	"github.com/totegamma/memories/internal/domain"
)

// StaticGeolocator reports a position supplied by the client.
// A nil Location behaves like a refused permission.
type StaticGeolocator struct {
	Location *domain.Location
}

func (g StaticGeolocator) CurrentLocation(ctx context.Context) (domain.Location, error) {
	if g.Location == nil {
		return domain.Location{}, errors.Wrap(domain.ErrPermissionDenied, "no position shared")
	}
	return *g.Location, nil
}

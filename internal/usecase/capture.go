package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/totegamma/memories/internal/domain"
	"github.com/totegamma/memories/internal/infra/observability"
)

const maxIDAttempts = 3

// CaptureSession carries the devices and input of one capture.
// A nil Geolocator means location access was not granted.
type CaptureSession struct {
	Camera      Camera
	Geolocator  Geolocator
	Description string
}

// CaptureUsecase backs the capture flow: camera, geolocation, record
// store and gallery, in that order.
type CaptureUsecase struct {
	repo    MemoryRepository
	gallery Gallery
	signal  Publisher
	metrics *observability.Collector
	newID   func() (string, error)
	now     func() time.Time
}

// NewCaptureUsecase builds the capture flow. gallery may be nil when
// captures should not be copied to a media library.
func NewCaptureUsecase(repo MemoryRepository, gallery Gallery, signal Publisher, metrics *observability.Collector) *CaptureUsecase {
	return &CaptureUsecase{
		repo:    repo,
		gallery: gallery,
		signal:  signal,
		metrics: metrics,
		newID:   newMemoryID,
		now:     time.Now,
	}
}

func newMemoryID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (uc *CaptureUsecase) CapturePhoto(ctx context.Context, session CaptureSession) (domain.CaptureResult, error) {
	ref, err := session.Camera.CapturePhoto(ctx)
	if err != nil {
		return domain.CaptureResult{}, uc.deviceFailed(ctx, domain.CapabilityCamera, "capture", err)
	}

	location := uc.locate(ctx, session.Geolocator)
	return uc.save(ctx, session.Camera, domain.MediaKindPhoto, ref, session.Description, location)
}

// Recording is a video capture in progress.
type Recording struct {
	uc       *CaptureUsecase
	session  CaptureSession
	location *domain.Location
}

// StartVideo starts recording. The location is taken now, when the user
// presses record.
func (uc *CaptureUsecase) StartVideo(ctx context.Context, session CaptureSession) (*Recording, error) {
	if err := session.Camera.StartRecording(ctx); err != nil {
		return nil, uc.deviceFailed(ctx, domain.CapabilityCamera, "record", err)
	}
	return &Recording{
		uc:       uc,
		session:  session,
		location: uc.locate(ctx, session.Geolocator),
	}, nil
}

func (r *Recording) Stop(ctx context.Context) (domain.CaptureResult, error) {
	ref, err := r.session.Camera.StopRecording(ctx)
	if err != nil {
		return domain.CaptureResult{}, r.uc.deviceFailed(ctx, domain.CapabilityCamera, "record", err)
	}
	return r.uc.save(ctx, r.session.Camera, domain.MediaKindVideo, ref, r.session.Description, r.location)
}

// CaptureVideo records a video from start to stop in one call.
func (uc *CaptureUsecase) CaptureVideo(ctx context.Context, session CaptureSession) (domain.CaptureResult, error) {
	recording, err := uc.StartVideo(ctx, session)
	if err != nil {
		return domain.CaptureResult{}, err
	}
	return recording.Stop(ctx)
}

func (uc *CaptureUsecase) locate(ctx context.Context, geolocator Geolocator) *domain.Location {
	if geolocator == nil {
		return nil
	}

	location, err := geolocator.CurrentLocation(ctx)
	if err != nil {
		_ = uc.deviceFailed(ctx, domain.CapabilityLocation, "locate", err)
		return nil
	}
	if location.IsSentinel() {
		return nil
	}
	if location.Timestamp.IsZero() {
		location.Timestamp = uc.now().UTC()
	}
	return &location
}

func (uc *CaptureUsecase) save(
	ctx context.Context,
	camera Camera,
	kind domain.MediaKind,
	ref string,
	description string,
	location *domain.Location,
) (domain.CaptureResult, error) {
	var desc *string
	if description != "" {
		desc = &description
	}

	var record domain.MemoryRecord
	for attempt := 0; ; attempt++ {
		id, err := uc.newID()
		if err != nil {
			return domain.CaptureResult{}, err
		}

		record = domain.MemoryRecord{
			ID:          id,
			MediaKind:   kind,
			MediaRef:    ref,
			Description: desc,
			Location:    location,
			CreatedAt:   uc.now().UTC(),
		}

		err = uc.repo.Append(ctx, record)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateID) && attempt+1 < maxIDAttempts {
			continue
		}
		uc.discard(ctx, camera, ref)
		return domain.CaptureResult{}, err
	}

	uc.metrics.MemoriesCreated.Inc()
	publish(ctx, uc.signal, domain.EventCreated, record.ID)

	result := domain.CaptureResult{Record: record}
	if uc.gallery == nil {
		return result, nil
	}

	if err := uc.gallery.SaveToLibrary(ctx, ref); err != nil {
		galleryErr := uc.deviceFailed(ctx, domain.CapabilityGallery, "save", err)
		uc.metrics.GallerySaveFailures.Inc()
		result.GalleryError = galleryErr.UserMessage()
		return result, nil
	}
	result.GallerySaved = true
	return result, nil
}

// discard drops media the camera wrote for a record that was never stored.
func (uc *CaptureUsecase) discard(ctx context.Context, camera Camera, ref string) {
	discarder, ok := camera.(MediaDiscarder)
	if !ok {
		return
	}
	if err := discarder.Discard(ctx, ref); err != nil {
		slog.WarnContext(
			ctx, "failed to discard orphaned media",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
			slog.String("module", "capture"),
		)
	}
}

func (uc *CaptureUsecase) deviceFailed(ctx context.Context, capability, op string, err error) *domain.DeviceCapabilityError {
	deviceErr, ok := err.(*domain.DeviceCapabilityError)
	if !ok {
		deviceErr = &domain.DeviceCapabilityError{Capability: capability, Op: op, Err: err}
	}

	uc.metrics.CaptureFailures.WithLabelValues(capability).Inc()
	slog.WarnContext(
		ctx, "device capability failed",
		slog.String("capability", capability),
		slog.String("op", op),
		slog.String("error", err.Error()),
		slog.String("module", "capture"),
	)
	return deviceErr
}

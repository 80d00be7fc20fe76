package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/totegamma/memories/internal/domain"
)

// The stored layout is shared with the mobile app, hence the
// Spanish field names.
type storedMemory struct {
	ID          string          `json:"id"`
	Kind        string          `json:"tipo"`
	URI         string          `json:"uri"`
	Description *string         `json:"descripcion,omitempty"`
	Location    *storedLocation `json:"ubicacion,omitempty"`
	Date        string          `json:"fecha"`
}

type storedLocation struct {
	Latitude  float64  `json:"latitud"`
	Longitude float64  `json:"longitud"`
	Timestamp *float64 `json:"timestamp,omitempty"` // unix millis
}

const (
	storedKindPhoto = "foto"
	storedKindVideo = "video"
)

// decodeCollection fails only when the blob is not a JSON array of
// records. Individual records that cannot be decoded are skipped and
// counted in bad.
func decodeCollection(raw []byte) (records []domain.MemoryRecord, bad int, err error) {
	var stored []storedMemory
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, 0, err
	}

	records = make([]domain.MemoryRecord, 0, len(stored))
	for _, s := range stored {
		record, err := s.toDomain()
		if err != nil {
			bad++
			continue
		}
		records = append(records, record)
	}
	return records, bad, nil
}

func encodeCollection(records []domain.MemoryRecord) ([]byte, error) {
	stored := make([]storedMemory, 0, len(records))
	for _, r := range records {
		s, err := fromDomain(r)
		if err != nil {
			return nil, err
		}
		stored = append(stored, s)
	}
	return json.Marshal(stored)
}

func (s storedMemory) toDomain() (domain.MemoryRecord, error) {
	var kind domain.MediaKind
	switch s.Kind {
	case storedKindPhoto:
		kind = domain.MediaKindPhoto
	case storedKindVideo:
		kind = domain.MediaKindVideo
	default:
		return domain.MemoryRecord{}, fmt.Errorf("unknown media kind %q", s.Kind)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, s.Date)
	if err != nil {
		return domain.MemoryRecord{}, fmt.Errorf("invalid date: %w", err)
	}

	record := domain.MemoryRecord{
		ID:          s.ID,
		MediaKind:   kind,
		MediaRef:    s.URI,
		Description: s.Description,
		CreatedAt:   createdAt.UTC(),
	}

	// {latitud: 0, longitud: 0} was written by older clients for "no location".
	if s.Location != nil && !(s.Location.Latitude == 0 && s.Location.Longitude == 0) {
		location := domain.Location{
			Latitude:  s.Location.Latitude,
			Longitude: s.Location.Longitude,
		}
		if s.Location.Timestamp != nil {
			location.Timestamp = time.UnixMilli(int64(*s.Location.Timestamp)).UTC()
		}
		record.Location = &location
	}

	return record, nil
}

func fromDomain(r domain.MemoryRecord) (storedMemory, error) {
	var kind string
	switch r.MediaKind {
	case domain.MediaKindPhoto:
		kind = storedKindPhoto
	case domain.MediaKindVideo:
		kind = storedKindVideo
	default:
		return storedMemory{}, fmt.Errorf("unknown media kind %q", r.MediaKind)
	}

	s := storedMemory{
		ID:          r.ID,
		Kind:        kind,
		URI:         r.MediaRef,
		Description: r.Description,
		Date:        r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	if r.HasLocation() {
		location := storedLocation{
			Latitude:  r.Location.Latitude,
			Longitude: r.Location.Longitude,
		}
		if !r.Location.Timestamp.IsZero() {
			ms := float64(r.Location.Timestamp.UnixMilli())
			location.Timestamp = &ms
		}
		s.Location = &location
	}

	return s, nil
}

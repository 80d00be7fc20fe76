package domain

import (
	"time"
)

// MediaKind tells whether a memory holds a photo or a video.
type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == MediaKindPhoto || k == MediaKindVideo
}

// NoDescription is what consumers show for an absent or empty description.
const NoDescription = "No description"

// Location is a geolocation fix taken at capture time.
type Location struct {
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// IsSentinel reports whether the location is the (0,0) value older clients
// stored in place of "no location".
func (l Location) IsSentinel() bool {
	return l.Latitude == 0 && l.Longitude == 0
}

// MemoryRecord is one captured moment.
type MemoryRecord struct {
	ID          string    `json:"id" validate:"required"`
	MediaKind   MediaKind `json:"mediaKind" validate:"required,oneof=photo video"`
	MediaRef    string    `json:"mediaRef" validate:"required"`
	Description *string   `json:"description,omitempty"`
	Location    *Location `json:"location,omitempty"`
	CreatedAt   time.Time `json:"createdAt" validate:"required"`
}

// HasLocation is false for records without a fix and for legacy sentinel fixes.
func (r MemoryRecord) HasLocation() bool {
	return r.Location != nil && !r.Location.IsSentinel()
}

func (r MemoryRecord) DisplayDescription() string {
	if r.Description == nil || *r.Description == "" {
		return NoDescription
	}
	return *r.Description
}

func (r MemoryRecord) DescriptionEquals(description string) bool {
	return r.Description != nil && *r.Description == description
}

// Listing is the browse view of the collection.
type Listing struct {
	Records []MemoryRecord `json:"records"`
	// Degraded is set when stored data could not be decoded and was skipped.
	Degraded bool `json:"degraded,omitempty"`
}

// CaptureResult is returned by the capture flow once the record is stored.
type CaptureResult struct {
	Record       MemoryRecord `json:"record"`
	GallerySaved bool         `json:"gallerySaved"`
	GalleryError string       `json:"galleryError,omitempty"`
}

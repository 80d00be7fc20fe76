package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ConflictError is returned when a write would break a uniqueness rule.
type ConflictError struct {
	Resource string
	ID       string
}

func (e ConflictError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s already exists", e.Resource)
	}
	return fmt.Sprintf("%s %q already exists", e.Resource, e.ID)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// ErrDuplicateID matches any ConflictError.
var ErrDuplicateID = ConflictError{Resource: "memory"}

// ValidationError wraps a rejected input.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid memory: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageReadError means the collection could not be read or decoded.
type StorageReadError struct {
	Key string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Key, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// StorageWriteError means the collection could not be written back.
type StorageWriteError struct {
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// Device capabilities.
const (
	CapabilityCamera   = "camera"
	CapabilityLocation = "location"
	CapabilityGallery  = "gallery"
)

// ErrPermissionDenied is wrapped by device adapters when the user refused access.
var ErrPermissionDenied = errors.New("permission denied")

// DeviceCapabilityError is a failed camera, geolocation or gallery call.
type DeviceCapabilityError struct {
	Capability string
	Op         string
	Err        error
}

func (e *DeviceCapabilityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Capability, e.Op, e.Err)
}

func (e *DeviceCapabilityError) Unwrap() error { return e.Err }

// UserMessage is the text shown in the blocking alert.
func (e *DeviceCapabilityError) UserMessage() string {
	switch e.Capability {
	case CapabilityCamera:
		if e.Op == "record" {
			return "Could not record the video. Try again."
		}
		return "Could not capture the photo"
	case CapabilityLocation:
		return "Could not get the current location"
	case CapabilityGallery:
		return "Could not save the media to the gallery"
	default:
		return "Device error"
	}
}

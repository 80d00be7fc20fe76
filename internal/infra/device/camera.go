package device

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const fileScheme = "file://"

// MediaRef turns a local path into a media reference.
func MediaRef(path string) string {
	return fileScheme + filepath.ToSlash(path)
}

// MediaPath returns the local path behind a file media reference.
func MediaPath(ref string) (string, bool) {
	if !strings.HasPrefix(ref, fileScheme) {
		return "", false
	}
	return filepath.FromSlash(strings.TrimPrefix(ref, fileScheme)), true
}

// WithinDir reports whether ref is a file reference inside dir.
func WithinDir(dir, ref string) bool {
	path, ok := MediaPath(ref)
	if !ok {
		return false
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// UploadCamera stores an uploaded media payload in the media directory.
// Photos are written on CapturePhoto, videos on StopRecording.
type UploadCamera struct {
	dir       string
	ext       string
	payload   io.Reader
	written   string
	recording bool
}

func NewUploadCamera(dir, filename string, payload io.Reader) *UploadCamera {
	return &UploadCamera{
		dir:     dir,
		ext:     strings.ToLower(filepath.Ext(filename)),
		payload: payload,
	}
}

func (c *UploadCamera) CapturePhoto(ctx context.Context) (string, error) {
	return c.write(ctx)
}

func (c *UploadCamera) StartRecording(ctx context.Context) error {
	if c.recording {
		return errors.New("already recording")
	}
	c.recording = true
	return nil
}

func (c *UploadCamera) StopRecording(ctx context.Context) (string, error) {
	if !c.recording {
		return "", errors.New("not recording")
	}
	c.recording = false
	return c.write(ctx)
}

func (c *UploadCamera) write(ctx context.Context) (string, error) {
	if c.payload == nil {
		return "", errors.New("no media payload")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create media directory")
	}

	path := filepath.Join(c.dir, uuid.NewString()+c.ext)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "failed to create media file")
	}

	_, err = io.Copy(file, c.payload)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "failed to write media file")
	}

	c.payload = nil
	c.written = path
	return MediaRef(path), nil
}

// Discard removes the file this camera wrote. Other references are left alone.
func (c *UploadCamera) Discard(ctx context.Context, ref string) error {
	path, ok := MediaPath(ref)
	if !ok || c.written == "" || path != c.written {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove media file")
	}
	c.written = ""
	return nil
}

// RefCamera hands out a media reference captured elsewhere.
type RefCamera struct {
	Ref string
}

func (c RefCamera) CapturePhoto(ctx context.Context) (string, error) {
	return c.ref()
}

func (c RefCamera) StartRecording(ctx context.Context) error {
	_, err := c.ref()
	return err
}

func (c RefCamera) StopRecording(ctx context.Context) (string, error) {
	return c.ref()
}

func (c RefCamera) ref() (string, error) {
	if strings.TrimSpace(c.Ref) == "" {
		return "", errors.New("empty media reference")
	}
	return c.Ref, nil
}

package device

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DirGallery copies captured media into a library directory.
type DirGallery struct {
	dir string
}

func NewDirGallery(dir string) *DirGallery {
	return &DirGallery{dir: dir}
}

func (g *DirGallery) SaveToLibrary(ctx context.Context, mediaRef string) error {
	src, ok := MediaPath(mediaRef)
	if !ok {
		return errors.Errorf("unsupported media reference %q", mediaRef)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create gallery directory")
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open media")
	}
	defer in.Close()

	dst := filepath.Join(g.dir, filepath.Base(src))
	out, err := os.Create(dst)
	if err != nil {
		if os.IsPermission(err) {
			return errors.Wrap(err, "gallery permission denied")
		}
		return errors.Wrap(err, "failed to create gallery file")
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return errors.Wrap(err, "failed to copy media")
	}
	return out.Close()
}

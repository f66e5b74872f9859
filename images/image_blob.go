package images

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// I_BlobStore holds the uploaded binaries, keyed by the generated
// filename (<id><ext>). Two implementations exist: local disk (here)
// and S3 compatible object storage (image_s3.go).
type I_BlobStore interface {
	SaveBlob(ctx context.Context, filename string, contentType string, src io.Reader, size int64) error
	OpenBlob(ctx context.Context, filename string) (io.ReadCloser, int64, error)
	DeleteBlob(ctx context.Context, filename string) error
	ListBlobs(ctx context.Context) ([]string, error)
}

type LocalBlobStore struct {
	dir string
}

func NewLocalBlobStore(dir string) (I_BlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating upload directory: %s", err.Error())
	}
	return &LocalBlobStore{dir}, nil
}

// SaveBlob writes to a temp file in the same directory and renames it
// into place, so a partially written blob is never served.
func (me *LocalBlobStore) SaveBlob(ctx context.Context, filename string, contentType string, src io.Reader, size int64) error {
	tmp, err := os.CreateTemp(me.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("error creating temp blob file: %s", err.Error())
	}
	tmpPath := tmp.Name()

	if _, err = io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("error writing blob: %s", err.Error())
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("error closing blob file: %s", err.Error())
	}

	if err = os.Rename(tmpPath, filepath.Join(me.dir, filename)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("error placing blob file: %s", err.Error())
	}
	return nil
}

func (me *LocalBlobStore) OpenBlob(ctx context.Context, filename string) (io.ReadCloser, int64, error) {
	f, err := os.Open(filepath.Join(me.dir, filename))
	if err != nil {
		return nil, 0, fmt.Errorf("blob not found: %s", err.Error())
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("error reading blob info: %s", err.Error())
	}
	return f, info.Size(), nil
}

func (me *LocalBlobStore) DeleteBlob(ctx context.Context, filename string) error {
	err := os.Remove(filepath.Join(me.dir, filename))
	if err != nil {
		return fmt.Errorf("error deleting blob: %s", err.Error())
	}
	return nil
}

func (me *LocalBlobStore) ListBlobs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(me.dir)
	if err != nil {
		return nil, fmt.Errorf("error listing blobs: %s", err.Error())
	}

	var names []string
	for _, e := range entries {
		// skip leftovers of interrupted writes
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

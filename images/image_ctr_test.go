package images

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestController(t *testing.T) (*ImageController, string) {
	dir := t.TempDir()
	repo, err := NewJSONImageRepo(filepath.Join(dir, "data", "images.json"))
	if err != nil {
		t.Fatal(err)
	}
	uploadDir := filepath.Join(dir, "uploads")
	blobs, err := NewLocalBlobStore(uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	return NewImageController(repo, blobs, 10*1024*1024, 10, ""), uploadDir
}

func seedImages(t *testing.T, ctr *ImageController, uploadDir string, records ...*ImageRecord) {
	for _, r := range records {
		if err := os.WriteFile(filepath.Join(uploadDir, r.Filename), []byte("blobdata"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := ctr.repo.SaveImages(records); err != nil {
		t.Fatal(err)
	}
}

func Test_DeleteImage(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)
	seedImages(t, ctr, uploadDir,
		testRecord("aaa", "cat.png", 2048),
		testRecord("bbb", "dog.png", 4096),
	)

	err := ctr.DeleteImage(context.TODO(), "aaa")
	asserts.Nil(err)

	list := ctr.ListImages()
	asserts.Len(list, 1)
	asserts.Equal("bbb", list[0].ID)

	_, statErr := os.Stat(filepath.Join(uploadDir, "aaa.png"))
	asserts.True(os.IsNotExist(statErr))
}

func Test_DeleteImageNotFound(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)
	seedImages(t, ctr, uploadDir, testRecord("aaa", "cat.png", 2048))

	err := ctr.DeleteImage(context.TODO(), "nonexistent")
	asserts.True(errors.Is(err, ErrImageNotFound))
	asserts.Len(ctr.ListImages(), 1)
}

func Test_DeleteImageBlobAlreadyGone(t *testing.T) {
	asserts := assert.New(t)
	ctr, _ := newTestController(t)
	// metadata only, no blob on disk
	asserts.Nil(ctr.repo.SaveImages([]*ImageRecord{testRecord("aaa", "cat.png", 2048)}))

	err := ctr.DeleteImage(context.TODO(), "aaa")
	asserts.Nil(err)
	asserts.Len(ctr.ListImages(), 0)
}

func Test_DeleteBatch(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)
	seedImages(t, ctr, uploadDir,
		testRecord("aaa", "cat.png", 2048),
		testRecord("bbb", "dog.png", 4096),
		testRecord("ccc", "bird.png", 512),
	)

	count, err := ctr.DeleteImages(context.TODO(), []string{"aaa", "ccc", "nonexistent"})
	asserts.Nil(err)
	asserts.Equal(2, count)

	list := ctr.ListImages()
	asserts.Len(list, 1)
	asserts.Equal("bbb", list[0].ID)
}

func Test_DeleteBatchNoMatch(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)
	seedImages(t, ctr, uploadDir, testRecord("aaa", "cat.png", 2048))

	_, err := ctr.DeleteImages(context.TODO(), []string{"xxx", "yyy"})
	asserts.True(errors.Is(err, ErrImageNotFound))
	asserts.Len(ctr.ListImages(), 1)
}

func Test_DeleteBatchEmptyIDs(t *testing.T) {
	asserts := assert.New(t)
	ctr, _ := newTestController(t)

	_, err := ctr.DeleteImages(context.TODO(), nil)
	asserts.True(errors.Is(err, ErrNoIDs))
}

func Test_DeleteBatchPreservesOrder(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)
	seedImages(t, ctr, uploadDir,
		testRecord("aaa", "1.png", 1),
		testRecord("bbb", "2.png", 2),
		testRecord("ccc", "3.png", 3),
		testRecord("ddd", "4.png", 4),
	)

	count, err := ctr.DeleteImages(context.TODO(), []string{"bbb"})
	asserts.Nil(err)
	asserts.Equal(1, count)

	list := ctr.ListImages()
	asserts.Len(list, 3)
	asserts.Equal("aaa", list[0].ID)
	asserts.Equal("ccc", list[1].ID)
	asserts.Equal("ddd", list[2].ID)
}

func Test_ClearImages(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)
	seedImages(t, ctr, uploadDir,
		testRecord("aaa", "cat.png", 2048),
		testRecord("bbb", "dog.png", 4096),
	)

	count, err := ctr.ClearImages(context.TODO())
	asserts.Nil(err)
	asserts.Equal(2, count)
	asserts.Len(ctr.ListImages(), 0)

	_, statErr := os.Stat(filepath.Join(uploadDir, "aaa.png"))
	asserts.True(os.IsNotExist(statErr))
}

func Test_ClearImagesEmpty(t *testing.T) {
	asserts := assert.New(t)
	ctr, _ := newTestController(t)

	count, err := ctr.ClearImages(context.TODO())
	asserts.Nil(err)
	asserts.Equal(0, count)
}

func Test_UpdateImageName(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)
	original := testRecord("aaa", "cat.png", 2048)
	seedImages(t, ctr, uploadDir, original)

	updated, err := ctr.UpdateImageName("aaa", "fluffy.png")
	asserts.Nil(err)
	asserts.Equal("fluffy.png", updated.OriginalName)
	asserts.NotNil(updated.UpdatedTime)
	asserts.Equal(original.Filename, updated.Filename)
	asserts.Equal(original.URL, updated.URL)
	asserts.Equal(original.Size, updated.Size)
	asserts.Equal(original.MimeType, updated.MimeType)
	asserts.Equal(original.UploadTime, updated.UploadTime)

	list := ctr.ListImages()
	asserts.Equal("fluffy.png", list[0].OriginalName)
}

func Test_UpdateImageNameEmpty(t *testing.T) {
	asserts := assert.New(t)
	ctr, _ := newTestController(t)

	// the name is rejected before any lookup happens
	_, err := ctr.UpdateImageName("nonexistent", "")
	asserts.True(errors.Is(err, ErrInvalidName))
	asserts.False(errors.Is(err, ErrImageNotFound))
}

func Test_UpdateImageNameNotFound(t *testing.T) {
	asserts := assert.New(t)
	ctr, _ := newTestController(t)

	_, err := ctr.UpdateImageName("nonexistent", "name.png")
	asserts.True(errors.Is(err, ErrImageNotFound))
}

func Test_Stats(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)
	seedImages(t, ctr, uploadDir,
		testRecord("aaa", "cat.png", 2048),
		testRecord("bbb", "dog.png", 4096),
	)

	count, total := ctr.Stats()
	asserts.Equal(2, count)
	asserts.Equal(int64(6144), total)
}

func Test_ExtensionFor(t *testing.T) {
	asserts := assert.New(t)

	asserts.Equal(".png", extensionFor("image/png", "cat.png"))
	asserts.Equal(".jpeg", extensionFor("image/jpeg", "photo.JPEG"))
	asserts.Equal(".jpg", extensionFor("image/jpeg", "noext"))
	asserts.Equal(".webp", extensionFor("image/webp", "weird.name.webp"))
	asserts.Equal(".gif", extensionFor("image/gif", "anim.exe"))
}

func Test_SweepOrphans(t *testing.T) {
	asserts := assert.New(t)
	ctr, uploadDir := newTestController(t)

	// one record without blob, one blob without record
	asserts.Nil(ctr.repo.SaveImages([]*ImageRecord{testRecord("aaa", "cat.png", 2048)}))
	asserts.Nil(os.WriteFile(filepath.Join(uploadDir, "stray.png"), []byte("x"), 0644))

	// must not delete or fail, divergence is only reported
	ctr.SweepOrphans(context.TODO())
	asserts.Len(ctr.ListImages(), 1)
	_, statErr := os.Stat(filepath.Join(uploadDir, "stray.png"))
	asserts.Nil(statErr)
}

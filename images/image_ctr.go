package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"imghost/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	ErrImageNotFound  = errors.New("image not found")
	ErrNoFiles        = errors.New("no files uploaded")
	ErrTooManyFiles   = errors.New("too many files")
	ErrFileTooLarge   = errors.New("file too large")
	ErrMimeNotAllowed = errors.New("file type not allowed")
	ErrNoIDs          = errors.New("ids can not empty")
	ErrInvalidName    = errors.New("invalid name")
)

// ImageController is the lifecycle coordinator: it keeps the metadata
// store and the blob store in sync across create, delete and update.
// Metadata is authoritative; blob failures are logged, never fatal.
// Every load-mutate-save sequence runs under mu, so concurrent requests
// cannot silently discard each other's writes.
type ImageController struct {
	repo          I_ImageRepo
	blobs         I_BlobStore
	maxFileSize   int64
	maxFiles      int
	publicBaseURL string
	mu            sync.Mutex
}

func NewImageController(repo I_ImageRepo, blobs I_BlobStore, maxFileSize int64, maxFiles int, publicBaseURL string) *ImageController {
	return &ImageController{
		repo:          repo,
		blobs:         blobs,
		maxFileSize:   maxFileSize,
		maxFiles:      maxFiles,
		publicBaseURL: publicBaseURL,
	}
}

// CreateImages accepts an upload batch. The whole batch is validated
// before any blob is written, so one bad file rejects the request with
// nothing stored. Accepted files each get an independent record and the
// batch is persisted with a single save.
func (me *ImageController) CreateImages(ctx context.Context, files []*multipart.FileHeader, baseURL string) ([]*ImageRecord, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > me.maxFiles {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyFiles, len(files), me.maxFiles)
	}

	for _, file := range files {
		if file.Size > me.maxFileSize {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, file.Filename, me.maxFileSize)
		}
		mimeType := file.Header.Get("Content-Type")
		if !utils.StringInSlice(mimeType, AllowedMimeTypes) {
			return nil, fmt.Errorf("%w: %s is %s", ErrMimeNotAllowed, file.Filename, mimeType)
		}
	}

	var records []*ImageRecord
	for _, file := range files {
		mimeType := file.Header.Get("Content-Type")
		id := uuid.New().String()
		filename := id + extensionFor(mimeType, file.Filename)

		src, err := file.Open()
		if err != nil {
			Logger.Error(err, "error opening uploaded file, skipped", "name", file.Filename)
			continue
		}
		err = me.blobs.SaveBlob(ctx, filename, mimeType, src, file.Size)
		src.Close()
		if err != nil {
			Logger.Error(err, "error saving blob, skipped", "name", file.Filename)
			continue
		}

		records = append(records, &ImageRecord{
			ID:           id,
			Filename:     filename,
			OriginalName: utils.SanitizeFilename(file.Filename),
			MimeType:     mimeType,
			Size:         file.Size,
			URL:          baseURL + "/images/" + filename,
			UploadTime:   time.Now().UTC(),
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("error storing uploaded files")
	}

	me.mu.Lock()
	defer me.mu.Unlock()
	list := me.repo.LoadImages()
	list = append(list, records...)
	if err := me.repo.SaveImages(list); err != nil {
		// blobs written above are now orphaned, a known gap
		return nil, err
	}
	return records, nil
}

// ListImages returns the stored list verbatim, in storage order.
// Filtering and sorting are left to the client.
func (me *ImageController) ListImages() []*ImageRecord {
	return me.repo.LoadImages()
}

func (me *ImageController) FindImage(filename string) *ImageRecord {
	for _, r := range me.repo.LoadImages() {
		if r.Filename == filename {
			return r
		}
	}
	return nil
}

func (me *ImageController) DeleteImage(ctx context.Context, id string) error {
	me.mu.Lock()
	defer me.mu.Unlock()

	list := me.repo.LoadImages()
	idx := -1
	for i, r := range list {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrImageNotFound
	}

	// blob deletion is best-effort, a missing blob is not an error here
	if err := me.blobs.DeleteBlob(ctx, list[idx].Filename); err != nil {
		Logger.V(1).Info("blob delete failed, removing metadata anyway", "filename", list[idx].Filename, "reason", err.Error())
	}

	list = append(list[:idx], list[idx+1:]...)
	return me.repo.SaveImages(list)
}

// DeleteImages removes every record whose id is in ids, deleting blobs
// best-effort and independently. The returned count is the number of
// metadata records removed, not of blobs successfully deleted.
func (me *ImageController) DeleteImages(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}
	idset := make(map[string]bool, len(ids))
	for _, id := range ids {
		idset[id] = true
	}

	me.mu.Lock()
	defer me.mu.Unlock()

	list := me.repo.LoadImages()
	var keep, drop []*ImageRecord
	for _, r := range list {
		if idset[r.ID] {
			drop = append(drop, r)
		} else {
			keep = append(keep, r)
		}
	}
	if len(drop) == 0 {
		return 0, ErrImageNotFound
	}

	for _, r := range drop {
		if err := me.blobs.DeleteBlob(ctx, r.Filename); err != nil {
			Logger.V(1).Info("blob delete failed, removing metadata anyway", "filename", r.Filename, "reason", err.Error())
		}
	}

	if err := me.repo.SaveImages(keep); err != nil {
		return 0, err
	}
	return len(drop), nil
}

// ClearImages empties the store and returns the prior record count.
func (me *ImageController) ClearImages(ctx context.Context) (int, error) {
	me.mu.Lock()
	defer me.mu.Unlock()

	list := me.repo.LoadImages()
	for _, r := range list {
		if err := me.blobs.DeleteBlob(ctx, r.Filename); err != nil {
			Logger.V(1).Info("blob delete failed, removing metadata anyway", "filename", r.Filename, "reason", err.Error())
		}
	}

	if err := me.repo.SaveImages([]*ImageRecord{}); err != nil {
		return 0, err
	}
	return len(list), nil
}

// UpdateImageName changes the display name and stamps updatedTime.
// Filename, url, size, mime type and upload time are never touched.
func (me *ImageController) UpdateImageName(id string, newName string) (*ImageRecord, error) {
	if ok, err := utils.IsValidImageName(newName); !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, err.Error())
	}

	me.mu.Lock()
	defer me.mu.Unlock()

	list := me.repo.LoadImages()
	var found *ImageRecord
	for _, r := range list {
		if r.ID == id {
			found = r
			break
		}
	}
	if found == nil {
		return nil, ErrImageNotFound
	}

	now := time.Now().UTC()
	found.OriginalName = newName
	found.UpdatedTime = &now

	if err := me.repo.SaveImages(list); err != nil {
		return nil, err
	}
	return found, nil
}

// Stats is a linear scan, like every other query here.
func (me *ImageController) Stats() (int, int64) {
	list := me.repo.LoadImages()
	var total int64
	for _, r := range list {
		total += r.Size
	}
	return len(list), total
}

// SweepOrphans logs blobs without records and records without blobs.
// Divergence is tolerated, never repaired automatically.
func (me *ImageController) SweepOrphans(ctx context.Context) {
	blobs, err := me.blobs.ListBlobs(ctx)
	if err != nil {
		Logger.V(1).Info("orphan sweep skipped", "reason", err.Error())
		return
	}
	onDisk := make(map[string]bool, len(blobs))
	for _, name := range blobs {
		onDisk[name] = true
	}

	referenced := make(map[string]bool)
	for _, r := range me.repo.LoadImages() {
		referenced[r.Filename] = true
		if !onDisk[r.Filename] {
			Logger.Info("metadata references a missing blob", "id", r.ID, "filename", r.Filename)
		}
	}
	for _, name := range blobs {
		if !referenced[name] {
			Logger.Info("blob has no metadata record", "filename", name)
		}
	}
}

func (me *ImageController) UploadImagesHandler(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error parsing upload form: " + err.Error()})
		return
	}

	// new records get the configured base url when one is set, else the
	// one the client used; existing records keep their stored urls
	baseURL := me.publicBaseURL
	if baseURL == "" {
		baseURL = utils.BaseURLFromRequest(c.Request)
	}

	records, err := me.CreateImages(c.Request.Context(), form.File["images"], baseURL)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoFiles), errors.Is(err, ErrTooManyFiles),
			errors.Is(err, ErrFileTooLarge), errors.Is(err, ErrMimeNotAllowed):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error uploading images: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, &UploadResponse{
		Success: true,
		Message: fmt.Sprintf("%d image(s) uploaded", len(records)),
		Images:  records,
	})
}

func (me *ImageController) ListImagesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, me.ListImages())
}

func (me *ImageController) DeleteImageHandler(c *gin.Context) {
	id := c.Param("id")
	err := me.DeleteImage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error deleting image: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, &StatusResponse{Success: true, Message: "image deleted"})
}

func (me *ImageController) DeleteBatchHandler(c *gin.Context) {
	var req BatchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}

	count, err := me.DeleteImages(c.Request.Context(), req.IDs)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoIDs):
			c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		case errors.Is(err, ErrImageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no matching images found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error deleting images: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, &BatchDeleteResponse{
		Success:      true,
		Message:      fmt.Sprintf("%d image(s) deleted", count),
		DeletedCount: count,
	})
}

func (me *ImageController) ClearAllHandler(c *gin.Context) {
	count, err := me.ClearImages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error clearing images: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, &StatusResponse{
		Success: true,
		Message: fmt.Sprintf("all %d image(s) deleted", count),
	})
}

func (me *ImageController) UpdateImageHandler(c *gin.Context) {
	id := c.Param("id")

	var req UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "originalName is required"})
		return
	}

	record, err := me.UpdateImageName(id, req.OriginalName)
	if err != nil {
		switch {
		case errors.Is(err, ErrImageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		case errors.Is(err, ErrInvalidName):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error updating image: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, &UpdateResponse{Success: true, Message: "image updated", Image: record})
}

func (me *ImageController) StatsHandler(c *gin.Context) {
	count, total := me.Stats()
	c.JSON(http.StatusOK, &StatsResponse{Count: count, TotalSize: total})
}

// GetImageHandler streams a blob by filename. The content type comes
// from the record when one exists; an unreferenced blob is still served
// with a type inferred from its extension.
func (me *ImageController) GetImageHandler(c *gin.Context) {
	filename := utils.SanitizeFilename(c.Param("filename"))
	if filename == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	blob, size, err := me.blobs.OpenBlob(c.Request.Context(), filename)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	defer blob.Close()

	contentType := ""
	if record := me.FindImage(filename); record != nil {
		contentType = record.MimeType
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	if _, err = io.Copy(c.Writer, blob); err != nil {
		Logger.V(1).Info("error sending image", "filename", filename, "reason", err.Error())
	}
}

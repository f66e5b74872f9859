package images

import (
	"path/filepath"
	"strings"
	"time"
)

// AllowedMimeTypes is the fixed upload allow-list. Anything else is
// rejected at intake and never reaches the blob store.
var AllowedMimeTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
}

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageRecord is one entry of the metadata store. All fields except
// OriginalName and UpdatedTime are fixed at upload time. URL is derived
// from the serving host once, at creation, and never recomputed.
type ImageRecord struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	OriginalName string     `json:"originalName"`
	MimeType     string     `json:"mimeType"`
	Size         int64      `json:"size"`
	URL          string     `json:"url"`
	UploadTime   time.Time  `json:"uploadTime"`
	UpdatedTime  *time.Time `json:"updatedTime,omitempty"`
}

type UpdateNameRequest struct {
	OriginalName string `json:"originalName"`
}

type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

type UploadResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Images  []*ImageRecord `json:"images"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type BatchDeleteResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deletedCount"`
}

type UpdateResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Image   *ImageRecord `json:"image"`
}

type StatsResponse struct {
	Count     int   `json:"count"`
	TotalSize int64 `json:"totalSize"`
}

// extensionFor keeps the original extension when it is one of the known
// image extensions, otherwise falls back to the one implied by the MIME
// type. The result is always safe to append to a generated id.
func extensionFor(mimeType, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return mimeExtensions[mimeType]
}

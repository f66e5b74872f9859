package images

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"imghost/config"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/juju/ratelimit"
)

var Logger logr.Logger = logr.Discard()

type ImageRoute struct {
	controller *ImageController
	limiter    *ratelimit.Bucket
	staticDir  string
}

func NewImageRoute(cfg *config.Config, l logr.Logger, limiter *ratelimit.Bucket) (ImageRoute, error) {
	Logger = l
	Logger.V(2).Info("New Image Route created")

	repo, err := NewJSONImageRepo(cfg.MetadataFile)
	if err != nil {
		return ImageRoute{}, err
	}

	var blobs I_BlobStore
	switch cfg.Storage.Driver {
	case "s3":
		blobs, err = NewS3BlobStore(
			cfg.Storage.Endpoint,
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			cfg.Storage.UseSSL,
			cfg.Storage.Bucket,
		)
	default:
		blobs, err = NewLocalBlobStore(cfg.UploadDir)
	}
	if err != nil {
		return ImageRoute{}, fmt.Errorf("error creating %s blob store: %s", cfg.Storage.Driver, err.Error())
	}

	controller := NewImageController(repo, blobs, cfg.MaxFileSize, cfg.MaxFilesPerBatch, cfg.PublicBaseURL)
	controller.SweepOrphans(context.Background())

	return ImageRoute{controller, limiter, cfg.StaticDir}, nil
}

func (me *ImageRoute) InitRouteTo(rg *gin.Engine) {
	rg.POST("/upload", me.RateLimit, me.controller.UploadImagesHandler)

	api := rg.Group("/api")
	api.GET("/images", me.RateLimit, me.controller.ListImagesHandler)
	api.DELETE("/images/batch", me.RateLimit, me.controller.DeleteBatchHandler)
	api.DELETE("/images/clear-all", me.RateLimit, me.controller.ClearAllHandler)
	api.DELETE("/images/:id", me.RateLimit, me.controller.DeleteImageHandler)
	api.PUT("/images/:id", me.RateLimit, me.controller.UpdateImageHandler)
	api.GET("/stats", me.RateLimit, me.controller.StatsHandler)

	rg.GET("/images/:filename", me.RateLimit, me.controller.GetImageHandler)

	rg.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	rg.StaticFile("/", filepath.Join(me.staticDir, "index.html"))
}

func (me *ImageRoute) RateLimit(ctx *gin.Context) {
	// Check if the request is allowed by the rate limiter
	if me.limiter.TakeAvailable(1) == 0 {
		// The request is not allowed, so return an error
		ctx.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	ctx.Next()
}

func (me *ImageRoute) GetController() *ImageController {
	return me.controller
}

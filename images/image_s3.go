package images

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3BlobStore keeps blobs in one bucket of any S3 compatible endpoint
// (MinIO, AWS). Object keys are the generated filenames, so records and
// the HTTP contract are identical to the local backend.
type S3BlobStore struct {
	client *minio.Client
	bucket string
}

func NewS3BlobStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (I_BlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating s3 client: %s", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking bucket: %s", err.Error())
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("error creating bucket: %s", err.Error())
		}
	}

	return &S3BlobStore{client, bucket}, nil
}

func (me *S3BlobStore) SaveBlob(ctx context.Context, filename string, contentType string, src io.Reader, size int64) error {
	_, err := me.client.PutObject(ctx, me.bucket, filename, src, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("error writing blob: %s", err.Error())
	}
	return nil
}

func (me *S3BlobStore) OpenBlob(ctx context.Context, filename string) (io.ReadCloser, int64, error) {
	obj, err := me.client.GetObject(ctx, me.bucket, filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("blob not found: %s", err.Error())
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, fmt.Errorf("blob not found: %s", err.Error())
	}
	return obj, info.Size, nil
}

func (me *S3BlobStore) DeleteBlob(ctx context.Context, filename string) error {
	err := me.client.RemoveObject(ctx, me.bucket, filename, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("error deleting blob: %s", err.Error())
	}
	return nil
}

func (me *S3BlobStore) ListBlobs(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range me.client.ListObjects(ctx, me.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("error listing blobs: %s", obj.Err.Error())
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

// Package archive keeps a copy of every artifact a run produced in an
// S3-compatible object store, one prefix per run.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/BartekS5/subjectmap/pkg/models"
)

const contentType = "application/xml"

// ObjectStore is the part of *minio.Client the archiver needs.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type MinioArchiver struct {
	Store  ObjectStore
	Bucket string
}

func NewMinioArchiver(endpoint, bucket, accessKey, secretKey string, useSSL bool) (*MinioArchiver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client for %s: %w", endpoint, err)
	}
	return &MinioArchiver{Store: client, Bucket: bucket}, nil
}

// ObjectKey is "<runID>/<file name>".
func ObjectKey(runID, fileName string) string {
	return path.Join(runID, fileName)
}

// Archive uploads every artifact. It stops at the first failure.
func (a *MinioArchiver) Archive(ctx context.Context, runID string, artifacts []models.GroupArtifact) error {
	ok, err := a.Store.BucketExists(ctx, a.Bucket)
	if err != nil {
		return fmt.Errorf("check archive bucket %s: %w", a.Bucket, err)
	}
	if !ok {
		return fmt.Errorf("archive bucket %s does not exist", a.Bucket)
	}

	for _, art := range artifacts {
		if err := a.put(ctx, runID, art); err != nil {
			return err
		}
	}
	return nil
}

func (a *MinioArchiver) put(ctx context.Context, runID string, art models.GroupArtifact) error {
	f, err := os.Open(art.Path)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", art.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact %s: %w", art.Path, err)
	}

	key := ObjectKey(runID, art.FileName)
	if _, err := a.Store.PutObject(ctx, a.Bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("archive %s to %s/%s: %w", art.FileName, a.Bucket, key, err)
	}
	return nil
}

package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// S3API is the part of the S3 client the transport uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Transport puts artifacts into a bucket using the site's username and
// credential as a static access key pair.
type S3Transport struct {
	DefaultRegion string

	// NewClient builds the client for one job. Tests replace it.
	NewClient func(ctx context.Context, ep Endpoint, accessKey, secretKey string) (S3API, error)
}

func NewS3Transport(defaultRegion string) *S3Transport {
	t := &S3Transport{DefaultRegion: defaultRegion}
	t.NewClient = t.newClient
	return t
}

func (t *S3Transport) Send(ctx context.Context, ep Endpoint, job *models.TransferJob) error {
	if err := job.Advance(models.StateConnecting); err != nil {
		return err
	}
	newClient := t.NewClient
	if newClient == nil {
		newClient = t.newClient
	}
	client, err := newClient(ctx, ep, job.Entry.Username, job.Secret)
	if err != nil {
		return err
	}
	if err := job.Advance(models.StateAuthenticated); err != nil {
		return err
	}

	src, err := os.Open(job.Artifact.Path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	if err := job.Advance(models.StateTransferring); err != nil {
		return err
	}
	key := ObjectKey(ep.Prefix, job.Entry.RemotePath, job.RemoteName())
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(ep.Bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentType:   aws.String("application/xml"),
		ContentLength: aws.Int64(job.Artifact.Size),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && isS3AuthCode(apiErr.ErrorCode()) {
			return fmt.Errorf("%w: s3 %s: %s", models.ErrAuthRejected, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return fmt.Errorf("put s3://%s/%s: %w", ep.Bucket, key, err)
	}
	return nil
}

// ObjectKey joins the endpoint prefix, the site's remote path and the file
// name into an object key without a leading slash.
func ObjectKey(prefix, remotePath, name string) string {
	return strings.TrimPrefix(path.Join("/", prefix, remotePath, name), "/")
}

func (t *S3Transport) newClient(ctx context.Context, ep Endpoint, accessKey, secretKey string) (S3API, error) {
	region := ep.Region
	if region == "" {
		region = t.DefaultRegion
	}
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep.BaseURL != "" {
			o.BaseEndpoint = aws.String(ep.BaseURL)
			o.UsePathStyle = true
		}
	}), nil
}

func isS3AuthCode(code string) bool {
	switch code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return true
	}
	return false
}

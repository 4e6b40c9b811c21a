// Package publish uploads run artifacts to a destination: a pre-signed
// https URL or an s3:// URI.
package publish

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vk/taskbed/internal/ctxlog"
)

// s3API is the slice of the S3 client uploads need.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader publishes artifact files. The zero value is not usable;
// construct it with NewUploader, or fill the fields in tests.
type Uploader struct {
	Client *http.Client
	// NewS3 builds the S3 client on first use. Nil loads the default AWS
	// configuration from the environment.
	NewS3 func(ctx context.Context) (s3API, error)
}

// NewUploader returns an uploader that reuses TCP connections across
// uploads.
func NewUploader() *Uploader {
	return &Uploader{Client: &http.Client{}}
}

// Upload sends the source file to the destination. Failures are the
// caller's to treat as fatal: a run that cannot deliver its artifact did
// not finish.
func (u *Uploader) Upload(ctx context.Context, source, dest string) error {
	switch {
	case strings.HasPrefix(dest, "s3://"):
		return u.uploadS3(ctx, source, dest)
	case strings.HasPrefix(dest, "https://"), strings.HasPrefix(dest, "http://"):
		return u.uploadPresigned(ctx, source, dest)
	default:
		return fmt.Errorf("unsupported publish destination %q: need https:// or s3://", dest)
	}
}

// uploadPresigned PUTs the file to a pre-signed URL.
func (u *Uploader) uploadPresigned(ctx context.Context, source, dest string) error {
	logger := ctxlog.FromContext(ctx).With("destination", dest)

	file, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open artifact '%s': %w", source, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file stats for '%s': %w", source, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest, file)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(source))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading artifact", "source", source, "size", stat.Size(), "contentType", contentType)

	resp, err := u.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload failed with status: %s", resp.Status)
	}

	logger.Info("Successfully uploaded artifact", "status", resp.Status)
	return nil
}

// uploadS3 puts the file under an s3://bucket/key URI.
func (u *Uploader) uploadS3(ctx context.Context, source, dest string) error {
	bucket, key, err := splitS3URI(dest)
	if err != nil {
		return err
	}

	file, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open artifact '%s': %w", source, err)
	}
	defer file.Close()

	client, err := u.s3Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   file,
	}); err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", bucket, key, err)
	}

	ctxlog.FromContext(ctx).Info("Successfully uploaded artifact", "destination", dest)
	return nil
}

func (u *Uploader) s3Client(ctx context.Context) (s3API, error) {
	if u.NewS3 != nil {
		return u.NewS3(ctx)
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 uri %q: need s3://bucket/key", uri)
	}
	return bucket, key, nil
}

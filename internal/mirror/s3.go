// Package mirror copies downloaded bundle files to S3-compatible object storage.
package mirror

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kiranshivaraju/geoharvest/internal/config"
	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
)

// putter is the slice of the S3 API the mirror uses.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror uploads files under <prefix>/task_<job>/<file> in one bucket.
type S3Mirror struct {
	client putter
	bucket string
	prefix string
}

// NewS3Mirror builds an S3 client from the default AWS credential chain.
func NewS3Mirror(ctx context.Context, cfg config.MirrorConfig) (*S3Mirror, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3Mirror(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Mirror(client putter, bucket, prefix string) *S3Mirror {
	return &S3Mirror{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key used for a job's file.
func (m *S3Mirror) Key(jobID, fileName string) string {
	return path.Join(m.prefix, "task_"+jobID, fileName)
}

// Put uploads the file at localPath and returns its s3:// URI.
func (m *S3Mirror) Put(ctx context.Context, jobID, fileName, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		telemetry.MirrorUploads.WithLabelValues("error").Inc()
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := m.Key(jobID, fileName)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		telemetry.MirrorUploads.WithLabelValues("error").Inc()
		return "", fmt.Errorf("put object: %w", err)
	}
	telemetry.MirrorUploads.WithLabelValues("ok").Inc()
	return fmt.Sprintf("s3://%s/%s", m.bucket, key), nil
}

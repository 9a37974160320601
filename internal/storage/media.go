package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

var sseAlgorithm = "AES256"

// MediaBucket stores uploaded audio in S3 where the transcription service can read it
type MediaBucket struct {
	s3     s3iface.S3API
	bucket string
	prefix string
}

// NewMediaBucket returns a media store writing below prefix in bucket
func NewMediaBucket(client s3iface.S3API, bucket, prefix string) *MediaBucket {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &MediaBucket{
		s3:     client,
		bucket: bucket,
		prefix: prefix,
	}
}

// PutAudio uploads one media file and returns its s3:// location
func (m *MediaBucket) PutAudio(ctx context.Context, name string, r io.ReadSeeker, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := m.prefix + name
	_, err := m.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(m.bucket),
		Key:                  aws.String(key),
		Body:                 r,
		ContentLength:        aws.Int64(size),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: aws.String(sseAlgorithm),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", m.bucket, key), nil
}

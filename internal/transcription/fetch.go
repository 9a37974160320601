package transcription

import (
	"context"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// Fetcher downloads raw transcript documents referenced by completed jobs
type Fetcher struct {
	s3      s3iface.S3API
	timeout time.Duration
}

// NewFetcher creates a fetcher. s3Client may be nil when only HTTP(S) locations are used.
func NewFetcher(s3Client s3iface.S3API, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Fetcher{
		s3:      s3Client,
		timeout: timeout,
	}
}

// Fetch returns the raw transcript stored at location (s3://bucket/key or an HTTP(S) URL)
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.Errorf(types.ErrCancelled, err, "fetch of %s cancelled", location)
	}

	var (
		body []byte
		err  error
	)
	if bucket, key, ok := s3Location(location); ok {
		body, err = f.fetchS3(ctx, bucket, key)
	} else {
		u, perr := url.Parse(location)
		if perr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, types.Errorf(types.ErrTranscriptFetch, perr, "unsupported transcript location %q", location)
		}
		body, err = f.fetchHTTP(ctx, location)
	}

	if err != nil && ctx.Err() != nil {
		return nil, types.Errorf(types.ErrCancelled, ctx.Err(), "fetch of %s cancelled", location)
	}
	return body, err
}

type httpResult struct {
	code int
	body []byte
	errs []error
}

// fetchHTTP downloads a (usually pre-signed) transcript URL. The fiber agent
// has no context support, so the request runs aside and is abandoned on cancel.
func (f *Fetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	done := make(chan httpResult, 1)
	go func() {
		code, body, errs := fiber.Get(location).Timeout(f.timeout).Bytes()
		done <- httpResult{code: code, body: body, errs: errs}
	}()

	var res httpResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}

	code, body := res.code, res.body
	if len(res.errs) > 0 {
		return nil, types.Errorf(types.ErrTranscriptFetch, res.errs[0], "download transcript")
	}
	if code != fiber.StatusOK {
		return nil, types.Errorf(types.ErrTranscriptFetch, nil,
			"download transcript: unexpected status %d", code)
	}

	log.Printf("Fetched transcript over HTTP (%d bytes)", len(body))
	return body, nil
}

// fetchS3 reads a transcript written to an output bucket
func (f *Fetcher) fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	if f.s3 == nil {
		return nil, types.Errorf(types.ErrTranscriptFetch, nil, "no S3 client configured for s3://%s/%s", bucket, key)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	obj, err := f.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, types.Errorf(types.ErrTranscriptFetch, err, "get s3://%s/%s", bucket, key)
	}
	defer obj.Body.Close()

	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, types.Errorf(types.ErrTranscriptFetch, err, "read s3://%s/%s", bucket, key)
	}

	log.Printf("Fetched transcript s3://%s/%s (%d bytes)", bucket, key, len(body))
	return body, nil
}

// s3Location recognizes s3://bucket/key URIs and unsigned path-style S3 URLs
// (https://s3.<region>.amazonaws.com/bucket/key) as written by Transcribe output buckets.
func s3Location(location string) (bucket, key string, ok bool) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", false
	}

	switch {
	case u.Scheme == "s3":
		bucket = u.Host
		key = strings.TrimPrefix(u.Path, "/")
	case u.Scheme == "https" && u.RawQuery == "" &&
		strings.HasPrefix(u.Host, "s3.") && strings.HasSuffix(u.Host, ".amazonaws.com"):
		bucket, key, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	default:
		return "", "", false
	}

	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

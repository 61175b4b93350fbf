package s3blob

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// objectAPI is the subset of the S3 client used by Writer.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Writer uploads objects under an optional key prefix.
type Writer struct {
	client objectAPI
	bucket string
	prefix string
}

// NewWriter creates a Writer for the client's bucket. prefix is prepended to
// every key (e.g. "dex-exec-lab/").
func NewWriter(c *Client, prefix string) *Writer {
	return &Writer{
		client: c.s3,
		bucket: c.bucket,
		prefix: prefix,
	}
}

func (w *Writer) key(p string) string {
	if w.prefix == "" {
		return p
	}
	return path.Join(w.prefix, p)
}

// Put uploads data as a single PutObject request.
func (w *Writer) Put(ctx context.Context, p string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key(p)),
		Body:        data,
		ContentType: aws.String(contentType),
	}

	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", w.key(p), err)
	}
	return nil
}

// PutMultipart uploads data with the multipart upload manager. partSize is
// clamped to the 5 MiB S3 minimum.
func (w *Writer) PutMultipart(ctx context.Context, p string, data io.Reader, partSize int64) error {
	if partSize < minPartSize {
		partSize = minPartSize
	}

	client, ok := w.client.(manager.UploadAPIClient)
	if !ok {
		return fmt.Errorf("s3blob: client does not support multipart upload")
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key(p)),
		Body:   data,
	}
	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", w.key(p), err)
	}
	return nil
}

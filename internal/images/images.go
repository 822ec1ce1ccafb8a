// Package images stores optional post attachments, either on local disk or
// in an S3-compatible bucket.
package images

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"microblog/internal/common"

	"github.com/google/uuid"
)

// Store persists image bytes under key and returns the reference clients use
// to fetch the image.
type Store interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Upload is a validated image read from a multipart form.
type Upload struct {
	Data        []byte
	ContentType string
	Ext         string
}

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ReadUpload loads fh into memory and checks its size and sniffed type.
func ReadUpload(fh *multipart.FileHeader, maxBytes int64) (*Upload, error) {
	if fh.Size > maxBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", common.ErrInvalidImage, maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return readUpload(f, maxBytes)
}

func readUpload(r io.Reader, maxBytes int64) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", common.ErrInvalidImage, maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrInvalidImage)
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported type %s", common.ErrInvalidImage, contentType)
	}

	return &Upload{Data: data, ContentType: contentType, Ext: ext}, nil
}

// NewKey builds a date-partitioned, collision-free object key.
func NewKey(now time.Time, ext string) string {
	d := now.UTC()
	return path.Join("posts", fmt.Sprintf("%04d", d.Year()), fmt.Sprintf("%02d", int(d.Month())), fmt.Sprintf("%02d", d.Day()), uuid.NewString()+ext)
}

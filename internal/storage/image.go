package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrEmptyImage      = errors.New("image is empty")
	ErrImageTooLarge   = errors.New("image exceeds size limit")
	ErrUnsupportedType = errors.New("only jpeg and png images are allowed")
)

const DefaultMaxImageBytes int64 = 2 << 20

// Image is a validated upload ready to be stored.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// ImageStore persists profile images. The returned ref is what goes into the
// user record and is later handed back to Delete.
type ImageStore interface {
	Save(ctx context.Context, name string, img Image) (ref string, err error)
	Delete(ctx context.Context, ref string) error
}

// ReadImage reads at most maxBytes from r and accepts the content only when
// its sniffed type is JPEG or PNG. The client supplied content type is ignored.
func ReadImage(r io.Reader, maxBytes int64) (Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}

	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}
	if int64(len(data)) > maxBytes {
		return Image{}, ErrImageTooLarge
	}

	mt := mimetype.Detect(data)

	switch {
	case mt.Is("image/jpeg"):
		return Image{Data: data, ContentType: "image/jpeg", Ext: ".jpg"}, nil
	case mt.Is("image/png"):
		return Image{Data: data, ContentType: "image/png", Ext: ".png"}, nil
	default:
		return Image{}, ErrUnsupportedType
	}
}

// ObjectName builds the stored file name for an upload made at now.
func ObjectName(now time.Time, ext string) string {
	return fmt.Sprintf("user-%d%s", now.UnixNano(), ext)
}

func (img Image) Reader() io.Reader {
	return bytes.NewReader(img.Data)
}

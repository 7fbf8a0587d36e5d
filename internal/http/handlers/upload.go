package handlers

import (
	"errors"
	"net/http"

	"github.com/geocoder89/usermgmt/internal/storage"
	"github.com/gin-gonic/gin"
)

const imageField = "profile_image"

// readProfileImage returns the uploaded image, or nil when the request has
// none. A rejected file is reported as a field error.
func readProfileImage(ctx *gin.Context, maxBytes int64) (*storage.Image, *FieldError, error) {
	if ctx.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil, nil
	}

	fh, err := ctx.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, &FieldError{Field: imageField, Rule: "max_size", Message: storage.ErrImageTooLarge.Error()}, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	img, err := storage.ReadImage(f, maxBytes)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrImageTooLarge):
			return nil, &FieldError{Field: imageField, Rule: "max_size", Message: err.Error()}, nil
		case errors.Is(err, storage.ErrUnsupportedType):
			return nil, &FieldError{Field: imageField, Rule: "image_type", Message: err.Error()}, nil
		case errors.Is(err, storage.ErrEmptyImage):
			return nil, &FieldError{Field: imageField, Rule: "required", Message: err.Error()}, nil
		}
		return nil, nil, err
	}

	return &img, nil, nil
}

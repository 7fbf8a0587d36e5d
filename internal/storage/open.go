package storage

import (
	"context"
	"fmt"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// Open builds the store named by driver. localDir is returned only for the
// local driver, where the API serves the files itself.
func Open(ctx context.Context, driver, uploadDir string, s3cfg S3Config) (store ImageStore, localDir string, err error) {
	switch driver {
	case "", DriverLocal:
		ls, err := NewLocalStore(uploadDir)
		if err != nil {
			return nil, "", err
		}
		return ls, ls.Dir(), nil

	case DriverS3:
		s3s, err := NewS3Store(ctx, s3cfg)
		if err != nil {
			return nil, "", err
		}
		return s3s, "", nil

	default:
		return nil, "", fmt.Errorf("unknown storage driver %q", driver)
	}
}

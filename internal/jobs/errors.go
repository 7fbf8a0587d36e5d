package jobs

import "errors"

var (
	ErrInvalidJobType      = errors.New("invalid job type")
	ErrInvalidJobPayload   = errors.New("invalid job payload")
	ErrPayloadTypeMismatch = errors.New("payload type mismatch for job type")
)

// IsPermanent reports whether err comes from a job that can never succeed,
// so retrying it only burns attempts.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidJobPayload) ||
		errors.Is(err, ErrInvalidJobType) ||
		errors.Is(err, ErrPayloadTypeMismatch)
}

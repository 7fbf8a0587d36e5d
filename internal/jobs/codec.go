package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/geocoder89/usermgmt/internal/domain/job"
)

// EncodePayload validates payload against t and returns its JSON form.
func EncodePayload(t JobType, payload any) ([]byte, error) {
	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload returns the typed payload stored in j, by value.
func DecodePayload(j job.Job) (any, error) {
	if len(j.Payload) == 0 && JobType(j.Type).IsValid() {
		return nil, ErrInvalidJobPayload
	}

	switch JobType(j.Type) {
	case JobDeleteProfileImage:
		return decodeAs[DeleteProfileImagePayload](j.Payload)
	case JobNotifyUserEvent:
		return decodeAs[NotifyUserEventPayload](j.Payload)
	default:
		return nil, ErrInvalidJobType
	}
}

func decodeAs[T any](raw []byte) (any, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}
	return p, nil
}

// NewCreateRequest encodes payload and sizes the retry budget for t.
func NewCreateRequest(t JobType, payload any) (job.CreateRequest, error) {
	b, err := EncodePayload(t, payload)
	if err != nil {
		return job.CreateRequest{}, err
	}

	return job.CreateRequest{
		Type:        string(t),
		Payload:     b,
		MaxAttempts: t.MaxAttempts(),
	}, nil
}

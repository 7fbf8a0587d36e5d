package jobs

import "strings"

// as accepts either T or *T, the two shapes callers hand to Enqueue.
func as[T any](payload any) (T, error) {
	switch v := payload.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}

	var zero T
	return zero, ErrPayloadTypeMismatch
}

// ValidatePayload checks that payload has the struct type registered for t
// and carries the fields the handler needs.
func ValidatePayload(t JobType, payload any) error {
	switch t {
	case JobDeleteProfileImage:
		p, err := as[DeleteProfileImagePayload](payload)
		if err != nil {
			return err
		}
		if strings.TrimSpace(p.Ref) == "" {
			return ErrInvalidJobPayload
		}

	case JobNotifyUserEvent:
		p, err := as[NotifyUserEventPayload](payload)
		if err != nil {
			return err
		}
		if !knownEvent(p.Event) || p.UserID <= 0 {
			return ErrInvalidJobPayload
		}

	default:
		return ErrInvalidJobType
	}

	return nil
}

func knownEvent(e string) bool {
	switch e {
	case EventUserRegistered, EventUserUpdated, EventUserDeleted:
		return true
	}
	return false
}

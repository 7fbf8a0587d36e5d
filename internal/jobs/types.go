package jobs

// JobType names a background task. It is stored in jobs.type and selects
// the payload struct used to decode jobs.payload.
type JobType string

const (
	JobDeleteProfileImage JobType = "delete_profile_image"
	JobNotifyUserEvent    JobType = "notify_user_event"
)

func (t JobType) IsValid() bool {
	return t == JobDeleteProfileImage || t == JobNotifyUserEvent
}

// MaxAttempts is the retry budget for t.
func (t JobType) MaxAttempts() int {
	switch t {
	case JobDeleteProfileImage:
		return 5
	case JobNotifyUserEvent:
		return 8
	default:
		return 1
	}
}

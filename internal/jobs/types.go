package jobs

type JobType string

const (
	JobSubmissionReceived JobType = "submission.received"
	JobModerationDecided  JobType = "moderation.decided"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobSubmissionReceived, JobModerationDecided:
		return true
	default:
		return false
	}
}

package worker

import (
	"fmt"

	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/jobs"
	"github.com/geocoder89/happenings/internal/notifications"
)

// moderatorsRecipient addresses the moderation team rather than one user.
const moderatorsRecipient = "moderators"

// MessageFor turns a decoded job payload into the notification it delivers.
// The job's idempotency key doubles as the delivery key.
func MessageFor(j job.Job, payload any) (notifications.Message, error) {
	key := j.ID
	if j.IdempotencyKey != nil && *j.IdempotencyKey != "" {
		key = *j.IdempotencyKey
	}

	switch p := payload.(type) {
	case jobs.SubmissionReceivedPayload:
		subject := fmt.Sprintf("New submission: %s at %s", p.Title, p.VenueName)
		if p.Instances > 1 {
			subject = fmt.Sprintf("%s (%d dates)", subject, p.Instances)
		}
		return notifications.Message{
			Kind:      notifications.KindSubmissionReceived,
			Key:       key,
			Recipient: moderatorsRecipient,
			Subject:   subject,
			Body:      p,
			CreatedAt: p.SubmittedAt,
		}, nil

	case jobs.ModerationDecidedPayload:
		// venue decisions have no submitter on record
		recipient := p.SubmittedBy
		if recipient == "" {
			recipient = moderatorsRecipient
		}
		return notifications.Message{
			Kind:      notifications.KindModerationDecided,
			Key:       key,
			Recipient: recipient,
			Subject:   fmt.Sprintf("Your %s was %s", p.Subject, pastTense(p.Action)),
			Body:      p,
			CreatedAt: p.DecidedAt,
		}, nil

	default:
		return notifications.Message{}, fmt.Errorf("%w: %T", jobs.ErrPayloadTypeMismatch, payload)
	}
}

func pastTense(action string) string {
	switch action {
	case "approve":
		return "approved"
	case "reject":
		return "rejected"
	case "cancel":
		return "cancelled"
	default:
		return action
	}
}

package jobs

import "strings"

// ValidatePayload checks that payload matches t and carries its required ids.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch t {
	case JobSubmissionReceived:
		var p SubmissionReceivedPayload
		switch v := payload.(type) {
		case SubmissionReceivedPayload:
			p = v
		case *SubmissionReceivedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.ParentEventID) || p.Instances <= 0 {
			return ErrInvalidJobPayload
		}
		return nil

	case JobModerationDecided:
		var p ModerationDecidedPayload
		switch v := payload.(type) {
		case ModerationDecidedPayload:
			p = v
		case *ModerationDecidedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.SubjectID) || blank(p.Action) {
			return ErrInvalidJobPayload
		}
		switch p.Subject {
		case SubjectEvent, SubjectSeries, SubjectVenue:
			return nil
		default:
			return ErrInvalidJobPayload
		}

	default:
		return ErrInvalidJobType
	}
}

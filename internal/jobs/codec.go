package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/geocoder89/happenings/internal/domain/job"
)

// EncodePayload validates payload against t and marshals it.
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

// NewRequest builds a job create request for a typed payload.
func NewRequest(t JobType, payload any, idempotencyKey string) (job.CreateRequest, error) {
	b, err := EncodePayload(t, payload)
	if err != nil {
		return job.CreateRequest{}, err
	}

	req := job.CreateRequest{Type: string(t), Payload: b}
	if idempotencyKey != "" {
		req.IdempotencyKey = &idempotencyKey
	}
	return req, nil
}

// DecodePayload unmarshals j.Payload into the payload struct for its type.
func DecodePayload(j job.Job) (any, error) {
	t := JobType(j.Type)
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	var (
		out any
		err error
	)

	switch t {
	case JobSubmissionReceived:
		var p SubmissionReceivedPayload
		err = json.Unmarshal(j.Payload, &p)
		out = p
	case JobModerationDecided:
		var p ModerationDecidedPayload
		err = json.Unmarshal(j.Payload, &p)
		out = p
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	if err := ValidatePayload(t, out); err != nil {
		return nil, err
	}
	return out, nil
}

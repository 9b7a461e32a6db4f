package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/happenings/internal/domain/job"
)

func TestEncodeDecode_SubmissionReceived(t *testing.T) {
	payload := SubmissionReceivedPayload{
		ParentEventID: "event-123",
		Title:         "Trivia",
		Instances:     12,
		Status:        "pending",
		SubmittedAt:   time.Now().UTC(),
	}

	req, err := NewRequest(JobSubmissionReceived, payload, "submission:event-123")
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	if req.IdempotencyKey == nil || *req.IdempotencyKey != "submission:event-123" {
		t.Fatalf("idempotency key not set")
	}

	decoded, err := DecodePayload(job.New(req))
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	p, ok := decoded.(SubmissionReceivedPayload)
	if !ok {
		t.Fatalf("expected SubmissionReceivedPayload, got %T", decoded)
	}
	if p.ParentEventID != payload.ParentEventID || p.Instances != 12 {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestEncodePayload_TypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobSubmissionReceived, ModerationDecidedPayload{
		Subject:   SubjectEvent,
		SubjectID: "e1",
		Action:    "approved",
	})
	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		t       JobType
		payload any
		want    error
	}{
		{"unknown_type", "nope", nil, ErrInvalidJobType},
		{"missing_parent", JobSubmissionReceived, SubmissionReceivedPayload{Instances: 1}, ErrInvalidJobPayload},
		{"zero_instances", JobSubmissionReceived, SubmissionReceivedPayload{ParentEventID: "p"}, ErrInvalidJobPayload},
		{"bad_subject", JobModerationDecided, ModerationDecidedPayload{Subject: "user", SubjectID: "x", Action: "approved"}, ErrInvalidJobPayload},
		{"pointer_ok", JobModerationDecided, &ModerationDecidedPayload{Subject: SubjectSeries, SubjectID: "x", Action: "rejected"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePayload(tt.t, tt.payload); !errors.Is(got, tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	if _, err := DecodePayload(job.Job{Type: "x", Payload: []byte("{}")}); !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("got %v", err)
	}
	if _, err := DecodePayload(job.Job{Type: string(JobModerationDecided)}); !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("got %v", err)
	}
	if _, err := DecodePayload(job.Job{Type: string(JobModerationDecided), Payload: []byte("{")}); !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("got %v", err)
	}
}

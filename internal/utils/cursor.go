package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// SubmissionCursor pages a submitter's instances, newest first.
type SubmissionCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

type JobCursor struct {
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decode(cursor string, v any) error {
	if cursor == "" {
		return ErrInvalidCursor
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return ErrInvalidCursor
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidCursor
	}
	return nil
}

func EncodeSubmissionCursor(createdAt time.Time, id string) (string, error) {
	return encode(SubmissionCursor{CreatedAt: createdAt, ID: id})
}

func DecodeSubmissionCursor(cursor string) (SubmissionCursor, error) {
	var c SubmissionCursor
	if err := decode(cursor, &c); err != nil {
		return SubmissionCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return SubmissionCursor{}, ErrInvalidCursor
	}
	return c, nil
}

func EncodeJobCursor(updatedAt time.Time, id string) (string, error) {
	return encode(JobCursor{UpdatedAt: updatedAt, ID: id})
}

func DecodeJobCursor(cursor string) (JobCursor, error) {
	var c JobCursor
	if err := decode(cursor, &c); err != nil {
		return JobCursor{}, err
	}
	if c.ID == "" || c.UpdatedAt.IsZero() {
		return JobCursor{}, ErrInvalidCursor
	}
	return c, nil
}

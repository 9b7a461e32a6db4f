package jobs

import "time"

// SubmissionReceivedPayload announces a new event or series to moderators.
type SubmissionReceivedPayload struct {
	ParentEventID string    `json:"parentEventId"`
	Title         string    `json:"title"`
	VenueName     string    `json:"venueName"`
	Instances     int       `json:"instances"`
	Status        string    `json:"status"`
	SubmittedBy   string    `json:"submittedBy,omitempty"`
	Truncated     bool      `json:"truncated,omitempty"`
	DroppedDates  int       `json:"droppedDates,omitempty"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

type Subject string

const (
	SubjectEvent  Subject = "event"
	SubjectSeries Subject = "series"
	SubjectVenue  Subject = "venue"
)

// ModerationDecidedPayload tells a submitter what happened to their content.
type ModerationDecidedPayload struct {
	Subject     Subject   `json:"subject"`
	SubjectID   string    `json:"subjectId"`
	Action      string    `json:"action"`
	Count       int       `json:"count"`
	ActorID     string    `json:"actorId,omitempty"`
	SubmittedBy string    `json:"submittedBy,omitempty"`
	DecidedAt   time.Time `json:"decidedAt"`
}

package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SubmissionHeader is the fixed header written the first time the submission sink is created.
var SubmissionHeader = []string{
	"ID", "Email", "Date", "Locality", "State", "Title",
	"Event Type", "Claims Summary", "Size Estimate", "Submitted At",
}

// Submission is a manually reported protest event awaiting review.
// It is never merged into the dashboard dataset.
type Submission struct {
	SubmittedAt   time.Time `json:"submittedAt"`
	SizeEstimate  *int      `json:"sizeEstimate,omitempty"`
	Email         string    `json:"email"`
	Date          string    `json:"date"`
	Locality      string    `json:"locality"`
	State         string    `json:"state,omitempty"`
	Title         string    `json:"title"`
	EventType     string    `json:"eventType,omitempty"`
	ClaimsSummary string    `json:"claimsSummary,omitempty"`
	ID            uuid.UUID `json:"id"`
}

// CSVRecord serializes the submission in SubmissionHeader order.
func (s *Submission) CSVRecord() []string {
	size := ""
	if s.SizeEstimate != nil {
		size = strconv.Itoa(*s.SizeEstimate)
	}
	return []string{
		s.ID.String(), s.Email, s.Date, s.Locality, s.State, s.Title,
		s.EventType, s.ClaimsSummary, size, s.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

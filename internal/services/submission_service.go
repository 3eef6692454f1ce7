package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/dissent/internal/logger"
	"github.com/stwalsh4118/dissent/internal/models"
	"github.com/stwalsh4118/dissent/internal/observability"
	"github.com/stwalsh4118/dissent/internal/repository"
)

// ErrInvalidSubmission wraps validator.ValidationErrors for a rejected submission.
var ErrInvalidSubmission = errors.New("invalid submission")

// SubmissionInput is a manually reported event as entered by a user.
type SubmissionInput struct {
	SizeEstimate  *int   `json:"sizeEstimate" validate:"omitempty,gte=0,lte=100000000"`
	Email         string `json:"email" validate:"required,email,max=254"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Locality      string `json:"locality" validate:"required,max=200"`
	State         string `json:"state" validate:"omitempty,len=2,alpha"`
	Title         string `json:"title" validate:"required,max=500"`
	EventType     string `json:"eventType" validate:"max=200"`
	ClaimsSummary string `json:"claimsSummary" validate:"max=2000"`
}

// SubmissionService defines the manual submission operations.
type SubmissionService interface {
	// Submit validates input, stamps it with an ID and the current time, and stores it.
	// Returns an error wrapping ErrInvalidSubmission and validator.ValidationErrors when
	// a field is rejected.
	Submit(ctx context.Context, input SubmissionInput) (*models.Submission, error)

	// Recent returns up to limit of the latest submissions, oldest first.
	Recent(ctx context.Context, limit int) ([]models.Submission, error)
}

type submissionService struct {
	repo     repository.SubmissionRepository
	validate *validator.Validate
	clock    clockwork.Clock
	metrics  *observability.Metrics
	log      *logger.Logger
}

// NewSubmissionService creates a new instance of SubmissionService. A nil clock uses the
// real clock.
func NewSubmissionService(repo repository.SubmissionRepository, clock clockwork.Clock, metrics *observability.Metrics, log *logger.Logger) SubmissionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &submissionService{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    clock,
		metrics:  metrics,
		log:      log.With(map[string]interface{}{"component": "submission_service"}),
	}
}

func (s *submissionService) Submit(ctx context.Context, input SubmissionInput) (*models.Submission, error) {
	input = normalizeInput(input)
	if err := s.validate.Struct(input); err != nil {
		s.record("invalid")
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSubmission, verrs)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	submission := &models.Submission{
		ID:            uuid.New(),
		Email:         input.Email,
		Date:          input.Date,
		Locality:      input.Locality,
		State:         input.State,
		Title:         input.Title,
		EventType:     input.EventType,
		ClaimsSummary: input.ClaimsSummary,
		SizeEstimate:  input.SizeEstimate,
		SubmittedAt:   s.clock.Now().UTC(),
	}

	if err := s.repo.Append(ctx, *submission); err != nil {
		s.record("error")
		s.log.Error("Failed to store submission", err, map[string]interface{}{
			"submission_id": submission.ID.String(),
		})
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	s.record("accepted")
	s.log.Info("Submission received", map[string]interface{}{
		"submission_id": submission.ID.String(),
		"date":          submission.Date,
		"state":         submission.State,
	})
	return submission, nil
}

func (s *submissionService) Recent(ctx context.Context, limit int) ([]models.Submission, error) {
	submissions, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

func (s *submissionService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(outcome).Inc()
	}
}

func normalizeInput(in SubmissionInput) SubmissionInput {
	in.Email = strings.TrimSpace(in.Email)
	in.Date = strings.TrimSpace(in.Date)
	in.Locality = strings.TrimSpace(in.Locality)
	in.State = strings.ToUpper(strings.TrimSpace(in.State))
	in.Title = strings.TrimSpace(in.Title)
	in.EventType = strings.TrimSpace(in.EventType)
	in.ClaimsSummary = strings.TrimSpace(in.ClaimsSummary)
	return in
}

package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/dissent/internal/models"
)

// ErrMalformedSink is returned when the submission file holds a row that does not match
// models.SubmissionHeader.
var ErrMalformedSink = errors.New("malformed submission sink")

// SubmissionRepository defines the storage operations for manual event submissions.
type SubmissionRepository interface {
	// Append persists one submission. Appends are serialized; concurrent callers never
	// interleave partial rows.
	Append(ctx context.Context, s models.Submission) error

	// List returns the most recent submissions in the order they were appended.
	// A limit of zero or less returns every submission.
	List(ctx context.Context, limit int) ([]models.Submission, error)
}

// csvSubmissionRepository appends submissions to a CSV file, writing
// models.SubmissionHeader when the file is first created.
type csvSubmissionRepository struct {
	mu   sync.Mutex
	path string
}

// NewCSVSubmissionRepository creates a SubmissionRepository backed by the CSV file at path.
// The file is created lazily on the first Append.
func NewCSVSubmissionRepository(path string) SubmissionRepository {
	return &csvSubmissionRepository{path: path}
}

// Append writes one row, preceded by the header when the file is new or empty.
func (r *csvSubmissionRepository) Append(ctx context.Context, s models.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create submission directory: %w", err)
		}
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open submission sink: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat submission sink: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(models.SubmissionHeader); err != nil {
			return fmt.Errorf("failed to write submission header: %w", err)
		}
	}
	if err := w.Write(s.CSVRecord()); err != nil {
		return fmt.Errorf("failed to write submission: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush submission: %w", err)
	}
	return f.Sync()
}

// List reads the sink back. A missing file means no submissions yet.
func (r *csvSubmissionRepository) List(ctx context.Context, limit int) ([]models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Submission{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open submission sink: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(models.SubmissionHeader)

	submissions := make([]models.Submission, 0)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSink, err)
		}
		if line == 1 {
			continue
		}
		s, err := parseSubmissionRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedSink, line, err)
		}
		submissions = append(submissions, s)
	}

	if limit > 0 && len(submissions) > limit {
		submissions = submissions[len(submissions)-limit:]
	}
	return submissions, nil
}

func parseSubmissionRecord(record []string) (models.Submission, error) {
	id, err := uuid.Parse(record[0])
	if err != nil {
		return models.Submission{}, fmt.Errorf("invalid id: %w", err)
	}
	submittedAt, err := time.Parse(time.RFC3339, record[9])
	if err != nil {
		return models.Submission{}, fmt.Errorf("invalid submitted at: %w", err)
	}

	s := models.Submission{
		ID:            id,
		Email:         record[1],
		Date:          record[2],
		Locality:      record[3],
		State:         record[4],
		Title:         record[5],
		EventType:     record[6],
		ClaimsSummary: record[7],
		SubmittedAt:   submittedAt,
	}
	if record[8] != "" {
		size, err := strconv.Atoi(record[8])
		if err != nil {
			return models.Submission{}, fmt.Errorf("invalid size estimate: %w", err)
		}
		s.SizeEstimate = &size
	}
	return s, nil
}

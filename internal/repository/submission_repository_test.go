package repository

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/dissent/internal/models"
)

func newSubmission(title string, submittedAt time.Time) models.Submission {
	size := 25
	return models.Submission{
		ID:            uuid.New(),
		Email:         "reporter@example.com",
		Date:          "2025-04-05",
		Locality:      "Boise",
		State:         "ID",
		Title:         title,
		EventType:     "rally",
		ClaimsSummary: "against, cuts",
		SizeEstimate:  &size,
		SubmittedAt:   submittedAt,
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSubmissionRepository_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manual_submissions.csv")
	repo := NewCSVSubmissionRepository(path)
	ctx := context.Background()
	now := time.Date(2025, 4, 6, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, newSubmission("first", now)))
	require.NoError(t, repo.Append(ctx, newSubmission("second", now.Add(time.Minute))))

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, models.SubmissionHeader, rows[0])
	assert.Equal(t, "first", rows[1][5])
	assert.Equal(t, "second", rows[2][5])
}

func TestCSVSubmissionRepository_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "submissions.csv")
	repo := NewCSVSubmissionRepository(path)

	require.NoError(t, repo.Append(context.Background(), newSubmission("rally", time.Now().UTC())))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestCSVSubmissionRepository_ListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manual_submissions.csv")
	repo := NewCSVSubmissionRepository(path)
	ctx := context.Background()

	want := newSubmission("Presidents Day rally, downtown", time.Date(2025, 2, 18, 12, 0, 0, 0, time.UTC))
	unsized := newSubmission("vigil", want.SubmittedAt.Add(time.Hour))
	unsized.SizeEstimate = nil

	require.NoError(t, repo.Append(ctx, want))
	require.NoError(t, repo.Append(ctx, unsized))

	got, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want, got[0])
	assert.Nil(t, got[1].SizeEstimate)
}

func TestCSVSubmissionRepository_ListLimitKeepsNewest(t *testing.T) {
	repo := NewCSVSubmissionRepository(filepath.Join(t.TempDir(), "s.csv"))
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Append(ctx, newSubmission(title, base.Add(time.Duration(i)*time.Hour))))
	}

	got, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Title)
	assert.Equal(t, "c", got[1].Title)
}

func TestCSVSubmissionRepository_ListMissingFile(t *testing.T) {
	repo := NewCSVSubmissionRepository(filepath.Join(t.TempDir(), "absent.csv"))

	got, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestCSVSubmissionRepository_ListMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	content := "ID,Email,Date,Locality,State,Title,Event Type,Claims Summary,Size Estimate,Submitted At\n" +
		"not-a-uuid,a@b.c,2025-01-01,X,TX,t,,,,2025-01-01T00:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := NewCSVSubmissionRepository(path).List(context.Background(), 0)
	assert.ErrorIs(t, err, ErrMalformedSink)
}

func TestCSVSubmissionRepository_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	repo := NewCSVSubmissionRepository(path)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Append(ctx, newSubmission("concurrent", time.Now().UTC())))
		}()
	}
	wg.Wait()

	rows := readRows(t, path)
	assert.Len(t, rows, 21)
	assert.Equal(t, models.SubmissionHeader, rows[0])
}

func TestCSVSubmissionRepository_CanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	repo := NewCSVSubmissionRepository(path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.Append(ctx, newSubmission("x", time.Now())), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

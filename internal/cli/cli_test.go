package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/dissent/internal/models"
)

const fixtureCSV = "date,locality,state,title,size_low,size_high,lat,lon,arrests\n" +
	"2025-01-01,Austin,TX,Rally,100,300,30.27,-97.74,\n" +
	"2025-01-02,Oakland,CA,March,,,37.8,-122.27,3\n" +
	"2025-01-03,Houston,TX,Vigil,50,50,29.76,-95.37,\n"

type fixture struct {
	dir     string
	dataset string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ccc.csv")
	require.NoError(t, os.WriteFile(path, []byte(fixtureCSV), 0o644))
	return fixture{dir: dir, dataset: path}
}

// run executes cccctl with the fixture's dataset and returns stdout and stderr.
func (f fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args,
		"--dataset", f.dataset,
		"--encoding", "utf-8",
		"--submissions", filepath.Join(f.dir, "submissions.csv"),
		"--env", "test",
	))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "cccctl "+Version+"\n", stdout.String())
}

func TestSummary(t *testing.T) {
	f := newFixture(t)

	t.Run("table", func(t *testing.T) {
		out, _, err := f.run(t, "summary", "--state", "TX")
		require.NoError(t, err)
		assert.Regexp(t, `Events\s+2\n`, out)
		assert.Regexp(t, `Largest event\s+200\n`, out)
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := f.run(t, "summary", "--json")
		require.NoError(t, err)

		var got struct {
			KPIs struct {
				TotalEvents int `json:"totalEvents"`
			} `json:"kpis"`
			Display struct {
				TotalEvents string `json:"totalEvents"`
			} `json:"display"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, 3, got.KPIs.TotalEvents)
		assert.Equal(t, "3", got.Display.TotalEvents)
	})

	t.Run("rejects bad flags", func(t *testing.T) {
		_, _, err := f.run(t, "summary", "--outcome", "riots")
		assert.ErrorContains(t, err, "riots")

		_, _, err = f.run(t, "summary", "--start", "01/02/2025")
		assert.ErrorContains(t, err, "--start")

		_, _, err = f.run(t, "summary", "--size", "some")
		assert.ErrorContains(t, err, "--size")
	})

	t.Run("missing dataset", func(t *testing.T) {
		broken := fixture{dir: f.dir, dataset: filepath.Join(f.dir, "absent.csv")}
		_, _, err := broken.run(t, "summary")
		assert.Error(t, err)
	})
}

func TestExport(t *testing.T) {
	f := newFixture(t)

	t.Run("stdout", func(t *testing.T) {
		out, _, err := f.run(t, "export", "--outcome", "arrests")
		require.NoError(t, err)

		records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, models.ExportHeader(0), records[0])
		assert.Contains(t, records[1], "Oakland")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(f.dir, "out.csv")
		_, stderr, err := f.run(t, "export", "--state", "CA", "--full", "--out", path)
		require.NoError(t, err)
		assert.Contains(t, stderr, "exported 3 rows")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 4, "full export ignores filters")
	})
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	snapshot := filepath.Join(f.dir, "ccc.db")

	t.Run("requires a path", func(t *testing.T) {
		_, _, err := f.run(t, "snapshot")
		assert.ErrorContains(t, err, "--snapshot")
	})

	t.Run("writes and is reused", func(t *testing.T) {
		out, _, err := f.run(t, "snapshot", "--snapshot", snapshot)
		require.NoError(t, err)
		assert.Equal(t, "wrote 3 rows to "+snapshot+"\n", out)
		assert.FileExists(t, snapshot)

		out, _, err = f.run(t, "summary", "--snapshot", snapshot, "--json")
		require.NoError(t, err)
		assert.Contains(t, out, `"totalEvents": 3`)
	})
}

func TestSubmissions(t *testing.T) {
	f := newFixture(t)

	t.Run("empty sink", func(t *testing.T) {
		out, _, err := f.run(t, "submissions")
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, "\n"), "header only")
		assert.Contains(t, out, "SUBMITTED")
	})

	t.Run("lists rows", func(t *testing.T) {
		sink := filepath.Join(f.dir, "submissions.csv")
		file, err := os.Create(sink)
		require.NoError(t, err)
		w := csv.NewWriter(file)
		require.NoError(t, w.Write(models.SubmissionHeader))
		size := 1200
		submitted := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
		for _, s := range []models.Submission{
			{ID: uuid.New(), SubmittedAt: submitted, Email: "a@example.org", Date: "2025-03-01", Locality: "Boise", State: "ID", Title: "Town hall", SizeEstimate: &size},
			{ID: uuid.New(), SubmittedAt: submitted, Email: "b@example.org", Date: "2025-03-02", Locality: "Reno", Title: "Sit-in"},
		} {
			require.NoError(t, w.Write(s.CSVRecord()))
		}
		w.Flush()
		require.NoError(t, w.Error())
		require.NoError(t, file.Close())

		out, _, err := f.run(t, "submissions", "--limit", "1")
		require.NoError(t, err)
		assert.NotContains(t, out, "Town hall")
		assert.Contains(t, out, "Sit-in")

		out, _, err = f.run(t, "submissions", "-n", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "Boise, ID")
		assert.Contains(t, out, "1,200")
	})
}

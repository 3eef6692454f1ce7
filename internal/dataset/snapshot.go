package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/dissent/internal/models"
	_ "modernc.org/sqlite"
)

// snapshotFormat changes whenever the events table layout does.
const snapshotFormat = "1"

// ErrSnapshotStale is returned when a snapshot is missing or does not match the source file.
var ErrSnapshotStale = errors.New("dataset snapshot is stale")

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
  id                   INTEGER PRIMARY KEY,
  date                 TEXT,
  lat                  REAL,
  lon                  REAL,
  size_low             REAL,
  size_high            REAL,
  size_mean            REAL,
  participant_injuries REAL,
  police_injuries      REAL,
  arrests              REAL,
  participant_deaths   REAL,
  police_deaths        REAL,
  property_damage      TEXT,
  title                TEXT NOT NULL DEFAULT '',
  locality             TEXT NOT NULL DEFAULT '',
  state                TEXT NOT NULL DEFAULT '',
  resolved_locality    TEXT NOT NULL DEFAULT '',
  resolved_state       TEXT NOT NULL DEFAULT '',
  location             TEXT NOT NULL DEFAULT '',
  event_type           TEXT NOT NULL DEFAULT '',
  organizations        TEXT NOT NULL DEFAULT '',
  participants         TEXT NOT NULL DEFAULT '',
  targets              TEXT NOT NULL DEFAULT '',
  claims_summary       TEXT NOT NULL DEFAULT '',
  notables             TEXT NOT NULL DEFAULT '',
  participant_measures TEXT NOT NULL DEFAULT '',
  police_measures      TEXT NOT NULL DEFAULT '',
  notes                TEXT NOT NULL DEFAULT '',
  sources              TEXT NOT NULL DEFAULT '[]'
);
`

const eventColumns = `id, date, lat, lon, size_low, size_high, size_mean,
  participant_injuries, police_injuries, arrests, participant_deaths, police_deaths,
  property_damage, title, locality, state, resolved_locality, resolved_state, location,
  event_type, organizations, participants, targets, claims_summary, notables,
  participant_measures, police_measures, notes, sources`

func openSnapshot(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// WriteSnapshot replaces the snapshot at path with the rows of ds, stamped with the
// source file identity so later reads can detect a changed source.
func WriteSnapshot(ctx context.Context, path string, ds *Dataset, src SourceInfo) (err error) {
	db, err := openSnapshot(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	if _, err = db.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM meta"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO events("+eventColumns+") VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range ds.events {
		e := &ds.events[i]
		var sources []byte
		sources, err = json.Marshal(e.Sources)
		if err != nil {
			return err
		}
		if e.Sources == nil {
			sources = []byte("[]")
		}
		_, err = stmt.ExecContext(ctx,
			e.ID, nullDate(e.Date), nullFloat(e.Lat), nullFloat(e.Lon),
			nullFloat(e.SizeLow), nullFloat(e.SizeHigh), nullFloat(e.SizeMean),
			nullFloat(e.ParticipantInjuries), nullFloat(e.PoliceInjuries), nullFloat(e.Arrests),
			nullFloat(e.ParticipantDeaths), nullFloat(e.PoliceDeaths), nullText(e.PropertyDamage),
			e.Title, e.Locality, e.State, e.ResolvedLocality, e.ResolvedState, e.Location,
			e.EventType, e.Organizations, e.Participants, e.Targets, e.ClaimsSummary, e.Notables,
			e.ParticipantMeasures, e.PoliceMeasures, e.Notes, string(sources),
		)
		if err != nil {
			return fmt.Errorf("failed to insert row %d: %w", e.ID, err)
		}
	}

	meta := map[string]string{
		"format":       snapshotFormat,
		"source_size":  strconv.FormatInt(src.Size, 10),
		"source_mtime": strconv.FormatInt(src.ModTime.UnixNano(), 10),
		"source_cols":  strconv.Itoa(ds.sourceCols),
	}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx, "INSERT INTO meta(key, value) VALUES(?, ?)", k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReadSnapshot loads the dataset stored at path. It returns ErrSnapshotStale when the file
// is absent, was written by a different format, or was built from a different source.
func ReadSnapshot(ctx context.Context, path string, src SourceInfo, clock clockwork.Clock) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrSnapshotStale, path)
		}
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := openSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotStale, err)
	}
	if meta["format"] != snapshotFormat ||
		meta["source_size"] != strconv.FormatInt(src.Size, 10) ||
		meta["source_mtime"] != strconv.FormatInt(src.ModTime.UnixNano(), 10) {
		return nil, fmt.Errorf("%w: source file changed", ErrSnapshotStale)
	}
	sourceCols, err := strconv.Atoi(meta["source_cols"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad source_cols", ErrSnapshotStale)
	}

	rows, err := db.QueryContext(ctx, "SELECT "+eventColumns+" FROM events ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return New(events, sourceCols, OriginSnapshot, clock.Now()), nil
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func scanEvent(rows *sql.Rows) (models.Event, error) {
	var (
		e       models.Event
		date    sql.NullString
		damage  sql.NullString
		sources string
		floats  [10]sql.NullFloat64
	)
	err := rows.Scan(
		&e.ID, &date, &floats[0], &floats[1], &floats[2], &floats[3], &floats[4],
		&floats[5], &floats[6], &floats[7], &floats[8], &floats[9],
		&damage, &e.Title, &e.Locality, &e.State, &e.ResolvedLocality, &e.ResolvedState, &e.Location,
		&e.EventType, &e.Organizations, &e.Participants, &e.Targets, &e.ClaimsSummary, &e.Notables,
		&e.ParticipantMeasures, &e.PoliceMeasures, &e.Notes, &sources,
	)
	if err != nil {
		return e, err
	}

	if date.Valid {
		if t, err := time.Parse(models.DateLayout, date.String); err == nil {
			e.Date = &t
		}
	}
	targets := []**float64{
		&e.Lat, &e.Lon, &e.SizeLow, &e.SizeHigh, &e.SizeMean,
		&e.ParticipantInjuries, &e.PoliceInjuries, &e.Arrests,
		&e.ParticipantDeaths, &e.PoliceDeaths,
	}
	for i, f := range floats {
		if f.Valid {
			v := f.Float64
			*targets[i] = &v
		}
	}
	if damage.Valid {
		s := damage.String
		e.PropertyDamage = &s
	}
	if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
		return e, err
	}
	if len(e.Sources) == 0 {
		e.Sources = nil
	}
	return e, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullText(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullDate(v *time.Time) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.Format(models.DateLayout), Valid: true}
}

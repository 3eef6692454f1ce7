// Package dataset loads the Crowd Counting Consortium event file into memory and keeps
// the current copy available to request handlers.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/dissent/internal/logger"
	"github.com/stwalsh4118/dissent/internal/models"
	"golang.org/x/text/encoding/charmap"
)

// Supported source encodings.
const (
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf-8"
)

// Dataset origins.
const (
	OriginCSV      = "csv"
	OriginSnapshot = "snapshot"
	OriginMemory   = "memory"
)

var (
	// ErrDatasetNotFound is returned when the source file does not exist.
	ErrDatasetNotFound = errors.New("dataset file not found")
	// ErrEmptyHeader is returned when the source file has no header row.
	ErrEmptyHeader = errors.New("dataset file has no header row")
	// ErrUnsupportedEncoding is returned for encodings other than latin1 and utf-8.
	ErrUnsupportedEncoding = errors.New("unsupported dataset encoding")
)

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
	"2006/01/02",
	"1/2/06",
}

// nullTokens are cell values read as missing, matched case-insensitively.
var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"#n/a": {},
	"nan":  {},
	"null": {},
	"none": {},
}

// LoadOptions configures Load.
type LoadOptions struct {
	Path         string
	Encoding     string
	SnapshotPath string
	Clock        clockwork.Clock
	Logger       *logger.Logger
}

// Load reads the dataset. When a snapshot path is configured and the snapshot matches the
// source file, the snapshot is used; otherwise the CSV is parsed and the snapshot rewritten.
func Load(ctx context.Context, opts LoadOptions) (*Dataset, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	src, err := StatSource(opts.Path)
	if err != nil {
		return nil, err
	}

	if opts.SnapshotPath != "" {
		ds, err := ReadSnapshot(ctx, opts.SnapshotPath, src, clock)
		if err == nil {
			logInfo(opts.Logger, "Dataset loaded from snapshot", map[string]interface{}{
				"snapshot": opts.SnapshotPath,
				"rows":     ds.Len(),
			})
			return ds, nil
		}
		logInfo(opts.Logger, "Snapshot unusable, parsing source CSV", map[string]interface{}{
			"snapshot": opts.SnapshotPath,
			"reason":   err.Error(),
		})
	}

	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	start := clock.Now()
	events, sourceCols, err := Parse(f, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", opts.Path, err)
	}
	ds := New(events, sourceCols, OriginCSV, clock.Now())
	logInfo(opts.Logger, "Dataset parsed", map[string]interface{}{
		"path":        opts.Path,
		"rows":        ds.Len(),
		"duration_ms": clock.Since(start).Milliseconds(),
	})

	if opts.SnapshotPath != "" {
		if err := WriteSnapshot(ctx, opts.SnapshotPath, ds, src); err != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("Failed to write dataset snapshot", map[string]interface{}{
					"snapshot": opts.SnapshotPath,
					"error":    err.Error(),
				})
			}
		}
	}
	return ds, nil
}

func logInfo(log *logger.Logger, msg string, fields map[string]interface{}) {
	if log != nil {
		log.Info(msg, fields)
	}
}

// SourceInfo identifies a version of the source file.
type SourceInfo struct {
	ModTime time.Time
	Size    int64
}

// StatSource returns the size and modification time of the source file.
func StatSource(path string) (SourceInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SourceInfo{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return SourceInfo{}, fmt.Errorf("failed to stat dataset: %w", err)
	}
	return SourceInfo{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Parse reads event rows from CSV. Columns are matched by header name; absent columns
// read as null for every row and unparseable cells coerce to null. It returns the rows
// and the number of source_N citation columns present.
func Parse(r io.Reader, encoding string) ([]models.Event, int, error) {
	decoded, err := decode(r, encoding)
	if err != nil {
		return nil, 0, err
	}

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, ErrEmptyHeader
		}
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}
	cols := newColumnIndex(header)
	if len(cols.byName) == 0 {
		return nil, 0, ErrEmptyHeader
	}

	var events []models.Event
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read row %d: %w", len(events)+2, err)
		}
		if isBlankRecord(record) {
			continue
		}
		e := cols.event(record)
		e.ID = len(events) + 1
		events = append(events, e)
	}
	return events, cols.sourceCols, nil
}

func decode(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingLatin1, "iso-8859-1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case EncodingUTF8, "utf8":
		return &bomSkipper{r: r}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding)
	}
}

// bomSkipper drops a leading UTF-8 byte order mark.
type bomSkipper struct {
	r       io.Reader
	checked bool
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if b.checked {
		return b.r.Read(p)
	}
	b.checked = true
	var bom [3]byte
	n, err := io.ReadFull(b.r, bom[:])
	prefix := bom[:n]
	if n == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		prefix = nil
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, err
	}
	b.r = io.MultiReader(strings.NewReader(string(prefix)), b.r)
	return b.r.Read(p)
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type columnIndex struct {
	byName     map[string]int
	sources    []int
	sourceCols int
}

func newColumnIndex(header []string) columnIndex {
	idx := columnIndex{byName: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := idx.byName[name]; !dup {
			idx.byName[name] = i
		}
	}
	for n := 1; n <= models.MaxSources; n++ {
		if _, ok := idx.byName["source_"+strconv.Itoa(n)]; ok {
			idx.sourceCols = n
		}
	}
	idx.sources = make([]int, idx.sourceCols)
	for n := 1; n <= idx.sourceCols; n++ {
		if i, ok := idx.byName["source_"+strconv.Itoa(n)]; ok {
			idx.sources[n-1] = i
		} else {
			idx.sources[n-1] = -1
		}
	}
	return idx
}

func (c columnIndex) has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

func (c columnIndex) text(record []string, name string) string {
	i, ok := c.byName[name]
	if !ok || i >= len(record) {
		return ""
	}
	v := strings.TrimSpace(record[i])
	if _, null := nullTokens[strings.ToLower(v)]; null {
		return ""
	}
	return v
}

func (c columnIndex) nullableText(record []string, name string) *string {
	v := c.text(record, name)
	if v == "" {
		return nil
	}
	return &v
}

func (c columnIndex) number(record []string, name string) *float64 {
	return parseNumber(c.text(record, name))
}

func (c columnIndex) date(record []string, name string) *time.Time {
	return parseDate(c.text(record, name))
}

func (c columnIndex) event(record []string) models.Event {
	e := models.Event{
		Date:                c.date(record, "date"),
		Lat:                 c.number(record, "lat"),
		Lon:                 c.number(record, "lon"),
		SizeLow:             c.number(record, "size_low"),
		SizeHigh:            c.number(record, "size_high"),
		ParticipantInjuries: c.number(record, "participant_injuries"),
		PoliceInjuries:      c.number(record, "police_injuries"),
		Arrests:             c.number(record, "arrests"),
		ParticipantDeaths:   c.number(record, "participant_deaths"),
		PoliceDeaths:        c.number(record, "police_deaths"),
		PropertyDamage:      c.nullableText(record, "property_damage"),
		Title:               c.text(record, "title"),
		Locality:            c.text(record, "locality"),
		State:               c.text(record, "state"),
		ResolvedLocality:    c.text(record, "resolved_locality"),
		ResolvedState:       c.text(record, "resolved_state"),
		Location:            c.text(record, "location"),
		EventType:           c.text(record, "event_type"),
		Organizations:       strings.ToLower(c.text(record, "organizations")),
		Participants:        c.text(record, "participants"),
		Targets:             strings.ToLower(c.text(record, "targets")),
		ClaimsSummary:       c.text(record, "claims_summary"),
		Notables:            c.text(record, "notables"),
		ParticipantMeasures: c.text(record, "participant_measures"),
		PoliceMeasures:      c.text(record, "police_measures"),
		Notes:               c.text(record, "notes"),
	}

	// Bounds win when the file carries them; size_mean is only read directly otherwise.
	if c.has("size_low") && c.has("size_high") {
		if e.SizeLow != nil && e.SizeHigh != nil {
			mean := (*e.SizeLow + *e.SizeHigh) / 2
			e.SizeMean = &mean
		}
	} else {
		e.SizeMean = c.number(record, "size_mean")
	}

	if c.sourceCols > 0 {
		e.Sources = make([]string, c.sourceCols)
		for n, i := range c.sources {
			if i >= 0 && i < len(record) {
				e.Sources[n] = strings.TrimSpace(record[i])
			}
		}
	}
	return e
}

func parseNumber(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

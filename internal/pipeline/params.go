// Package pipeline implements the filter → aggregate → summarize stages that turn the
// protest dataset into dashboard outputs. Every function here is pure: inputs are never
// mutated and identical inputs always yield identical outputs.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/stwalsh4118/dissent/internal/models"
)

// SizePresence selects rows by whether they carry a participant-count estimate.
type SizePresence string

const (
	SizeAll     SizePresence = "all"
	SizeHas     SizePresence = "has"
	SizeMissing SizePresence = "no"
)

// OutcomeFlag names a positive-outcome filter.
type OutcomeFlag string

const (
	OutcomeArrests             OutcomeFlag = "arrests"
	OutcomeParticipantInjuries OutcomeFlag = "participant_injuries"
	OutcomePoliceInjuries      OutcomeFlag = "police_injuries"
	OutcomePropertyDamage      OutcomeFlag = "property_damage"
	OutcomeParticipantDeaths   OutcomeFlag = "participant_deaths"
	OutcomePoliceDeaths        OutcomeFlag = "police_deaths"
)

// OutcomeFlags lists every supported outcome flag in display order.
var OutcomeFlags = []OutcomeFlag{
	OutcomeArrests,
	OutcomeParticipantInjuries,
	OutcomePoliceInjuries,
	OutcomePropertyDamage,
	OutcomeParticipantDeaths,
	OutcomePoliceDeaths,
}

// Valid reports whether f is a known outcome flag.
func (f OutcomeFlag) Valid() bool {
	for _, known := range OutcomeFlags {
		if f == known {
			return true
		}
	}
	return false
}

// Params is the filter parameter set. The zero value matches every row.
type Params struct {
	Start        *time.Time
	End          *time.Time
	Size         SizePresence
	Organization string
	Target       string
	States       []string
	Cities       []string
	Outcomes     []OutcomeFlag
}

// OrganizationTerms splits the organization search on commas, trims and lower-cases each
// term, and drops empty terms.
func (p Params) OrganizationTerms() []string {
	return splitTerms(p.Organization)
}

// TargetTerms applies the same term splitting to the target search.
func (p Params) TargetTerms() []string {
	return splitTerms(p.Target)
}

func splitTerms(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		term := strings.ToLower(strings.TrimSpace(part))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

// Normalize returns an equivalent parameter set in canonical form: sorted and de-duplicated
// selections, normalized search strings, and a concrete size presence. Two parameter sets
// that filter identically normalize to the same value whenever that is cheap to detect.
func (p Params) Normalize() Params {
	n := Params{
		Start:        truncateDay(p.Start),
		End:          truncateDay(p.End),
		Size:         p.Size,
		Organization: strings.Join(sortedUnique(p.OrganizationTerms()), ","),
		Target:       strings.Join(sortedUnique(p.TargetTerms()), ","),
		States:       sortedUnique(p.States),
		Cities:       sortedUnique(p.Cities),
	}
	if n.Size == "" {
		n.Size = SizeAll
	}

	outcomes := make([]string, 0, len(p.Outcomes))
	for _, o := range p.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	for _, o := range sortedUnique(outcomes) {
		n.Outcomes = append(n.Outcomes, OutcomeFlag(o))
	}
	return n
}

// Key returns a stable cache key for the normalized parameter set.
func (p Params) Key() string {
	n := p.Normalize()

	var b strings.Builder
	b.WriteString("start=")
	if n.Start != nil {
		b.WriteString(n.Start.Format(models.DateLayout))
	}
	b.WriteString("|end=")
	if n.End != nil {
		b.WriteString(n.End.Format(models.DateLayout))
	}
	b.WriteString("|size=" + string(n.Size))
	b.WriteString("|org=" + n.Organization)
	b.WriteString("|target=" + n.Target)
	b.WriteString("|states=" + strings.Join(n.States, ";"))
	b.WriteString("|cities=" + strings.Join(n.Cities, ";"))
	b.WriteString("|outcomes=")
	for i, o := range n.Outcomes {
		if i > 0 {
			b.WriteString(";")
		}
		b.WriteString(string(o))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return "dashboard:v1:" + hex.EncodeToString(hash[:16])
}

func truncateDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

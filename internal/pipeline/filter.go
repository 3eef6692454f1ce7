package pipeline

import (
	"strings"

	"github.com/stwalsh4118/dissent/internal/models"
)

// predicate reports whether a row survives one filter category.
type predicate func(e *models.Event) bool

// Filter returns the rows of events that satisfy every category in params.
// Categories combine with AND; selections within a category combine with OR.
// The input slice is never modified and the result never aliases it.
func Filter(events []models.Event, params Params) []models.Event {
	preds := buildPredicates(params)

	out := make([]models.Event, 0, len(events))
	for i := range events {
		e := &events[i]
		keep := true
		for _, pred := range preds {
			if !pred(e) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, *e)
		}
	}
	return out
}

func buildPredicates(params Params) []predicate {
	var preds []predicate

	// Date range: any supplied bound drops rows with unknown dates.
	if params.Start != nil || params.End != nil {
		start := truncateDay(params.Start)
		end := truncateDay(params.End)
		preds = append(preds, func(e *models.Event) bool {
			if e.Date == nil {
				return false
			}
			if start != nil && e.Date.Before(*start) {
				return false
			}
			if end != nil && e.Date.After(*end) {
				return false
			}
			return true
		})
	}

	switch params.Size {
	case SizeHas:
		preds = append(preds, func(e *models.Event) bool { return e.SizeMean != nil })
	case SizeMissing:
		preds = append(preds, func(e *models.Event) bool { return e.SizeMean == nil })
	}

	if terms := params.OrganizationTerms(); len(terms) > 0 {
		preds = append(preds, func(e *models.Event) bool {
			return containsAny(e.Organizations, terms)
		})
	}

	if terms := params.TargetTerms(); len(terms) > 0 {
		preds = append(preds, func(e *models.Event) bool {
			return containsAny(e.Targets, terms)
		})
	}

	if states := toSet(params.States); len(states) > 0 {
		preds = append(preds, func(e *models.Event) bool {
			_, ok := states[e.State]
			return ok
		})
	}

	if cities := toSet(params.Cities); len(cities) > 0 {
		preds = append(preds, func(e *models.Event) bool {
			_, ok := cities[e.City()]
			return ok
		})
	}

	for _, flag := range params.Outcomes {
		if pred := outcomePredicate(flag); pred != nil {
			preds = append(preds, pred)
		}
	}

	return preds
}

// outcomePredicate returns the row test for an outcome flag, or nil for unknown flags.
// Counters must be present and strictly positive; textual counters were nulled at load.
func outcomePredicate(flag OutcomeFlag) predicate {
	switch flag {
	case OutcomeArrests:
		return positive(func(e *models.Event) *float64 { return e.Arrests })
	case OutcomeParticipantInjuries:
		return positive(func(e *models.Event) *float64 { return e.ParticipantInjuries })
	case OutcomePoliceInjuries:
		return positive(func(e *models.Event) *float64 { return e.PoliceInjuries })
	case OutcomeParticipantDeaths:
		return positive(func(e *models.Event) *float64 { return e.ParticipantDeaths })
	case OutcomePoliceDeaths:
		return positive(func(e *models.Event) *float64 { return e.PoliceDeaths })
	case OutcomePropertyDamage:
		return func(e *models.Event) bool { return e.HasPropertyDamage() }
	default:
		return nil
	}
}

func positive(field func(e *models.Event) *float64) predicate {
	return func(e *models.Event) bool {
		v := field(e)
		return v != nil && *v > 0
	}
}

// containsAny matches case-insensitive substrings, not whole words:
// "acme" matches both "acme coalition" and "acmesoft".
func containsAny(field string, terms []string) bool {
	if field == "" {
		return false
	}
	lower := strings.ToLower(field)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

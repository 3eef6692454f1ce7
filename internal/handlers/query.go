package handlers

import (
	"time"

	"github.com/stwalsh4118/dissent/internal/models"
	"github.com/stwalsh4118/dissent/internal/pipeline"
)

// FilterQuery represents the filter query parameters shared by the dashboard endpoints.
// States, cities and outcomes are repeated parameters (?state=TX&state=CA).
type FilterQuery struct {
	Start        string   `form:"start" binding:"omitempty,datetime=2006-01-02"`
	End          string   `form:"end" binding:"omitempty,datetime=2006-01-02"`
	Size         string   `form:"size" binding:"omitempty,oneof=has no all"`
	Organization string   `form:"org" binding:"max=500"`
	Target       string   `form:"target" binding:"max=500"`
	States       []string `form:"state" binding:"max=60,dive,max=64"`
	Cities       []string `form:"city" binding:"max=500,dive,max=200"`
	Outcomes     []string `form:"outcome" binding:"dive,oneof=arrests participant_injuries police_injuries property_damage participant_deaths police_deaths"`
}

// Params converts the bound query into pipeline parameters. Dates have already been
// validated by binding, so parse failures cannot occur here.
func (q FilterQuery) Params() pipeline.Params {
	p := pipeline.Params{
		Start:        parseDay(q.Start),
		End:          parseDay(q.End),
		Size:         pipeline.SizePresence(q.Size),
		Organization: q.Organization,
		Target:       q.Target,
		States:       q.States,
		Cities:       q.Cities,
	}
	for _, o := range q.Outcomes {
		p.Outcomes = append(p.Outcomes, pipeline.OutcomeFlag(o))
	}
	return p
}

// EventsQuery adds paging to FilterQuery.
type EventsQuery struct {
	FilterQuery
	Limit  int `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// LocationQuery identifies a clicked marker by its label.
type LocationQuery struct {
	FilterQuery
	Label string `form:"label" binding:"required,max=500"`
}

// ExportQuery selects the export scope.
type ExportQuery struct {
	FilterQuery
	Scope string `form:"scope" binding:"omitempty,oneof=filtered full"`
}

// OptionsQuery narrows the city list to the selected states.
type OptionsQuery struct {
	States []string `form:"state" binding:"max=60,dive,max=64"`
}

func parseDay(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

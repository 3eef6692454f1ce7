package pipeline

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/stwalsh4118/dissent/internal/models"
)

// NoData is the display string for a KPI that cannot be computed from the current rows.
const NoData = "-"

// Summary holds the scalar KPIs for a filtered row set.
// Nil pointers are the "no data" sentinel and serialize as JSON null.
type Summary struct {
	MeanParticipants        *float64 `json:"meanParticipants"`
	LargestEvent            *float64 `json:"largestEvent"`
	LargestDay              *float64 `json:"largestDay"`
	PercentMissingSize      *float64 `json:"percentMissingSize"`
	PercentNoInjuries       *float64 `json:"percentNoInjuries"`
	PercentNoArrests        *float64 `json:"percentNoArrests"`
	PercentNoPropertyDamage *float64 `json:"percentNoPropertyDamage"`
	PercentOfPopulation     *float64 `json:"percentOfPopulation"`
	TotalParticipants       float64  `json:"totalParticipants"`
	PopulationDenominator   float64  `json:"populationDenominator"`
	TotalEvents             int      `json:"totalEvents"`
}

// Summarize computes the KPI scalars. populationDenominator scales the largest single-day
// turnout into a share of population; a non-positive denominator leaves that KPI undefined.
func Summarize(events []models.Event, populationDenominator float64) Summary {
	s := Summary{
		TotalEvents:           len(events),
		PopulationDenominator: populationDenominator,
	}
	if s.TotalEvents == 0 {
		return s
	}

	var (
		sized         int
		missing       int
		noInjuries    int
		noArrests     int
		noDamage      int
		largestEvent  float64
		haveLargest   bool
		participantSz float64
	)
	for i := range events {
		e := &events[i]
		if e.SizeMean != nil {
			sized++
			participantSz += *e.SizeMean
			if !haveLargest || *e.SizeMean > largestEvent {
				largestEvent = *e.SizeMean
				haveLargest = true
			}
		} else {
			missing++
		}
		if nullOrZero(e.ParticipantInjuries) && nullOrZero(e.PoliceInjuries) {
			noInjuries++
		}
		if nullOrZero(e.Arrests) {
			noArrests++
		}
		if !e.HasPropertyDamage() {
			noDamage++
		}
	}

	s.TotalParticipants = participantSz
	if sized > 0 {
		s.MeanParticipants = ptr(participantSz / float64(sized))
		s.LargestEvent = ptr(largestEvent)
	}

	total := float64(s.TotalEvents)
	s.PercentMissingSize = ptr(100 * float64(missing) / total)
	s.PercentNoInjuries = ptr(100 * float64(noInjuries) / total)
	s.PercentNoArrests = ptr(100 * float64(noArrests) / total)
	s.PercentNoPropertyDamage = ptr(100 * float64(noDamage) / total)

	if b, ok := bucketByDay(events); ok {
		peak := 0.0
		for _, sum := range b.sums {
			if sum > peak {
				peak = sum
			}
		}
		s.LargestDay = ptr(peak)
		if populationDenominator > 0 {
			s.PercentOfPopulation = ptr(100 * peak / populationDenominator)
		}
	}
	return s
}

func nullOrZero(v *float64) bool {
	return v == nil || *v == 0
}

func ptr(v float64) *float64 {
	return &v
}

// KPIDisplay holds the KPI values formatted for tiles.
type KPIDisplay struct {
	TotalEvents             string `json:"totalEvents"`
	MeanParticipants        string `json:"meanParticipants"`
	TotalParticipants       string `json:"totalParticipants"`
	LargestEvent            string `json:"largestEvent"`
	LargestDay              string `json:"largestDay"`
	PercentMissingSize      string `json:"percentMissingSize"`
	PercentNoInjuries       string `json:"percentNoInjuries"`
	PercentNoArrests        string `json:"percentNoArrests"`
	PercentNoPropertyDamage string `json:"percentNoPropertyDamage"`
	PercentOfPopulation     string `json:"percentOfPopulation"`
}

// FormatKPIs renders a Summary as display strings, using NoData for undefined values.
func FormatKPIs(s Summary) KPIDisplay {
	return KPIDisplay{
		TotalEvents:             humanize.Comma(int64(s.TotalEvents)),
		MeanParticipants:        formatCount(s.MeanParticipants),
		TotalParticipants:       humanize.Comma(int64(math.Round(s.TotalParticipants))),
		LargestEvent:            formatCount(s.LargestEvent),
		LargestDay:              formatCount(s.LargestDay),
		PercentMissingSize:      formatPercent(s.PercentMissingSize, 1),
		PercentNoInjuries:       formatPercent(s.PercentNoInjuries, 1),
		PercentNoArrests:        formatPercent(s.PercentNoArrests, 1),
		PercentNoPropertyDamage: formatPercent(s.PercentNoPropertyDamage, 1),
		PercentOfPopulation:     formatPercent(s.PercentOfPopulation, 4),
	}
}

func formatCount(v *float64) string {
	if v == nil {
		return NoData
	}
	return humanize.Comma(int64(math.Round(*v)))
}

func formatPercent(v *float64, decimals int) string {
	if v == nil {
		return NoData
	}
	return fmt.Sprintf("%.*f%%", decimals, *v)
}

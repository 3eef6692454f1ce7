package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/dissent/internal/models"
	"github.com/stwalsh4118/dissent/internal/pipeline"
)

// filterFlags mirrors the dashboard query parameters.
type filterFlags struct {
	start, end   string
	size         string
	organization string
	target       string
	states       []string
	cities       []string
	outcomes     []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.start, "start", "", "first day to include (YYYY-MM-DD)")
	fs.StringVar(&f.end, "end", "", "last day to include (YYYY-MM-DD)")
	fs.StringVar(&f.size, "size", string(pipeline.SizeAll), "size estimate presence: has, no or all")
	fs.StringVar(&f.organization, "org", "", "comma-separated organization search terms")
	fs.StringVar(&f.target, "target", "", "comma-separated target search terms")
	fs.StringSliceVar(&f.states, "state", nil, "state postal code (repeatable)")
	fs.StringSliceVar(&f.cities, "city", nil, "city (repeatable)")
	fs.StringSliceVar(&f.outcomes, "outcome", nil, "outcome flag (repeatable)")
}

// params validates the flags and converts them to pipeline parameters.
func (f *filterFlags) params() (pipeline.Params, error) {
	p := pipeline.Params{
		Size:         pipeline.SizePresence(f.size),
		Organization: f.organization,
		Target:       f.target,
		States:       f.states,
		Cities:       f.cities,
	}

	var err error
	if p.Start, err = flagDate("start", f.start); err != nil {
		return pipeline.Params{}, err
	}
	if p.End, err = flagDate("end", f.end); err != nil {
		return pipeline.Params{}, err
	}

	switch p.Size {
	case pipeline.SizeAll, pipeline.SizeHas, pipeline.SizeMissing:
	default:
		return pipeline.Params{}, fmt.Errorf("--size must be has, no or all, got %q", f.size)
	}

	for _, o := range f.outcomes {
		flag := pipeline.OutcomeFlag(o)
		if !flag.Valid() {
			return pipeline.Params{}, fmt.Errorf("unknown --outcome %q", o)
		}
		p.Outcomes = append(p.Outcomes, flag)
	}
	return p, nil
}

func flagDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", name, value)
	}
	return &t, nil
}

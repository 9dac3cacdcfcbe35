// Package optim searches controller parameters by running the control loop
// once per candidate.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/jointtorque/internal/experiment"
)

// Builder returns a ready-to-run experiment for one parameter set.
type Builder func(ctx context.Context, params map[string]float64) (*experiment.Experiment, error)

// Trial is one evaluated grid point. Value is NaN when Err is set.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

var ErrNoTrial = errors.New("optim: no trial succeeded")

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameter names but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Search runs every grid point in order and returns the one with the lowest
// metricName together with all trials. A failing trial is recorded and the
// search moves on; a cancelled context ends the search.
func (g *GridSearch) Search(ctx context.Context, build Builder, metricName string) (Trial, []Trial, error) {
	var trials []Trial
	err := g.searchRecursive(ctx, 0, map[string]float64{}, build, metricName, &trials)
	if err != nil {
		return Trial{}, trials, err
	}

	ranked := Ranked(trials)
	if len(ranked) == 0 {
		return Trial{}, trials, ErrNoTrial
	}
	return ranked[0], trials, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	build Builder,
	metricName string,
	trials *[]Trial,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		*trials = append(*trials, g.evaluate(ctx, current, build, metricName))
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, build, metricName, trials); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, params map[string]float64, build Builder, metricName string) Trial {
	trial := Trial{Params: params, Value: math.NaN()}

	exp, err := build(ctx, params)
	if err != nil {
		trial.Err = err
		return trial
	}
	result, err := exp.Run(ctx)
	if err != nil {
		trial.Err = err
		return trial
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		trial.Err = fmt.Errorf("optim: run did not report %q", metricName)
		return trial
	}
	if math.IsNaN(val) {
		trial.Err = fmt.Errorf("optim: %s is NaN", metricName)
		return trial
	}
	trial.Value = val
	return trial
}

// Ranked returns the successful trials sorted by value, best first. Ties keep
// grid order.
func Ranked(trials []Trial) []Trial {
	out := make([]Trial, 0, len(trials))
	for _, t := range trials {
		if t.Err == nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

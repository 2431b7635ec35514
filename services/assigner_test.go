package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pc-assign/models"
	"pc-assign/solvers"
)

// enumSolver löst kleine Modelle durch vollständige Enumeration aller
// 0/1-Belegungen. Nur für Tests gedacht.
type enumSolver struct{}

func (enumSolver) Name() string { return "enum" }

func (enumSolver) Solve(_ context.Context, prob *solvers.Problem) (*solvers.Solution, error) {
	n := len(prob.Vars)
	var best map[string]float64
	bestObj := 0.0

	for mask := 0; mask < 1<<n; mask++ {
		values := make(map[string]float64, n)
		for i, v := range prob.Vars {
			if mask&(1<<i) != 0 {
				values[v] = 1
			} else {
				values[v] = 0
			}
		}
		if !feasible(prob, values) {
			continue
		}
		obj := prob.Eval(values)
		if best == nil || obj > bestObj {
			best, bestObj = values, obj
		}
	}

	if best == nil {
		return nil, solvers.ErrInfeasible
	}
	return &solvers.Solution{Values: best, Objective: bestObj}, nil
}

func feasible(prob *solvers.Problem, values map[string]float64) bool {
	const eps = 1e-9
	for _, c := range prob.Constraints {
		lhs := 0.0
		for _, t := range c.Terms {
			lhs += t.Coef * values[t.Var]
		}
		switch c.Sense {
		case solvers.SenseEQ:
			if lhs < c.RHS-eps || lhs > c.RHS+eps {
				return false
			}
		case solvers.SenseGE:
			if lhs < c.RHS-eps {
				return false
			}
		case solvers.SenseLE:
			if lhs > c.RHS+eps {
				return false
			}
		}
	}
	return true
}

func TestRunEndToEnd(t *testing.T) {
	store := exampleStore()
	opts := DefaultSolveOptions()
	opts.MinInterest = false

	assigner := NewAssignService(enumSolver{}, zap.NewNop())
	stats, err := assigner.Run(context.Background(), store, nil, opts)
	require.NoError(t, err)

	// A bekommt P1 (Konflikt mit P2), B bekommt P2; das Optimum ist
	// 0.75 + 0.7
	require.Len(t, stats.Assignments, 2)
	assert.InDelta(t, 1.45, stats.Objective, 1e-9)
	assert.Equal(t, 2, stats.NumPapers)
	assert.Equal(t, 2, stats.NumReviewers)

	byPaper := map[string]string{}
	for _, a := range stats.Assignments {
		byPaper[a.PaperKey] = a.Email
		assert.Equal(t, "primary", a.Action)
	}
	assert.Equal(t, "a@example.org", byPaper["P1"])
	assert.Equal(t, "b@example.org", byPaper["P2"])
}

func TestRunInfeasible(t *testing.T) {
	// ein Paper mit n_rev=3, aber nur zwei Reviewer
	store := NewPrefStore()
	store.AddPaper(&models.Paper{Key: "P1", Title: "Zu viele Reviews", NumReviews: 3})
	store.AddReviewer(&models.Reviewer{Key: "a", Email: "a@example.org"})
	store.AddReviewer(&models.Reviewer{Key: "b", Email: "b@example.org"})
	store.SetPref("P1", "a", scored(5))
	store.SetPref("P1", "b", scored(5))

	opts := DefaultSolveOptions()
	opts.MinInterest = false

	assigner := NewAssignService(enumSolver{}, zap.NewNop())
	stats, err := assigner.Run(context.Background(), store, nil, opts)
	require.ErrorIs(t, err, solvers.ErrInfeasible)
	assert.Nil(t, stats)
}

func TestRunWithOverrides(t *testing.T) {
	store := exampleStore()
	opts := DefaultSolveOptions()
	opts.MinInterest = false

	// B auf P1 erzwingen. A kann P2 wegen des Konflikts nicht
	// übernehmen, also landen beide Papers bei B; das verlangt
	// BalanceLoad aus.
	opts.BalanceLoad = false
	ops := []models.OverrideOp{
		{Position: 0, Op: models.OverrideForceAssign, PaperKey: "P1", ReviewerKey: "b"},
	}

	assigner := NewAssignService(enumSolver{}, zap.NewNop())
	stats, err := assigner.Run(context.Background(), store, ops, opts)
	require.NoError(t, err)

	byPaper := map[string]string{}
	for _, a := range stats.Assignments {
		byPaper[a.PaperKey] = a.Email
	}
	assert.Equal(t, "b@example.org", byPaper["P1"])
	assert.InDelta(t, 0.375+0.7, stats.Objective, 1e-9)
}

func TestRunDropReviewerCascades(t *testing.T) {
	store := exampleStore()
	opts := DefaultSolveOptions()
	opts.MinInterest = false
	opts.BalanceLoad = false

	ops := []models.OverrideOp{
		{Position: 0, Op: models.OverrideDropReviewer, ReviewerKey: "a"},
	}

	assigner := NewAssignService(enumSolver{}, zap.NewNop())
	stats, err := assigner.Run(context.Background(), store, ops, opts)
	require.NoError(t, err)

	// nur B übrig: beide Papers gehen an B
	require.Len(t, stats.Assignments, 2)
	for _, a := range stats.Assignments {
		assert.Equal(t, "b@example.org", a.Email)
	}
	assert.Equal(t, 1, stats.NumReviewers)
}

func TestRunPropagatesDegenerateRange(t *testing.T) {
	store := exampleStore()
	opts := DefaultSolveOptions()
	opts.FixedMin, opts.FixedMax = 3, 3

	assigner := NewAssignService(enumSolver{}, zap.NewNop())
	_, err := assigner.Run(context.Background(), store, nil, opts)
	require.ErrorIs(t, err, ErrDegenerateRange)
}

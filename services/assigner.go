package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pc-assign/models"
	"pc-assign/solvers"
	"pc-assign/solvers/cbc"
	"pc-assign/solvers/glpk"
)

// NewSolver wählt das Backend anhand des Namens aus, analog zur
// Provider-Auswahl über ENABLED_PROVIDERS in älteren Diensten.
func NewSolver(name, binPath string, logger *zap.Logger) (solvers.Solver, error) {
	switch name {
	case "", "cbc":
		return cbc.New(binPath, logger), nil
	case "glpk", "glpsol":
		return glpk.New(binPath, logger), nil
	default:
		return nil, fmt.Errorf("unbekanntes solver-backend %q", name)
	}
}

// RunStats fasst einen abgeschlossenen Lauf zusammen.
type RunStats struct {
	Assignments []models.Assignment
	Objective   float64
	Warnings    []string

	NumPapers    int
	NumReviewers int
}

// AssignService orchestriert die Pipeline eines Laufs:
// Overrides -> Normalisierung -> Modellbau -> Solve -> Interpretation.
// Pro Lauf wird ein frischer PrefStore übergeben; der Service hält
// keinen Zustand zwischen Läufen.
type AssignService struct {
	Logger *zap.Logger
	Solver solvers.Solver
}

// NewAssignService erstellt eine neue Instanz.
func NewAssignService(solver solvers.Solver, logger *zap.Logger) *AssignService {
	return &AssignService{Logger: logger, Solver: solver}
}

// Run führt die Pipeline aus. Bei Unlösbarkeit wird
// solvers.ErrInfeasible unverändert durchgereicht und keine
// Teilausgabe erzeugt; Constraints werden nie automatisch gelockert.
func (s *AssignService) Run(ctx context.Context, store *PrefStore, ops []models.OverrideOp, opts SolveOptions) (*RunStats, error) {
	pairOps, err := store.ApplyOverrides(ops, s.Logger)
	if err != nil {
		return nil, err
	}

	normalizer := NewScoreNormalizer(s.Logger)
	scores, err := normalizer.Apply(store, opts.ScalePerReviewer, opts.FixedMin, opts.FixedMax)
	if err != nil {
		return nil, err
	}

	builder := NewModelBuilder(s.Logger)
	res, err := builder.Build(store, scores, pairOps, opts)
	if err != nil {
		return nil, err
	}

	sol, err := s.Solver.Solve(ctx, res.Problem)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{
		Objective:    sol.Objective,
		Warnings:     res.Warnings,
		NumPapers:    len(store.Papers),
		NumReviewers: len(store.Reviewers),
	}
	// Alles > 0.5 zählt als zugewiesen; Solver dürfen Fließkomma-0/1
	// zurückgeben
	for _, p := range store.Papers {
		for _, r := range store.Reviewers {
			name, _ := res.Var(p.Key, r.Key)
			if sol.Assigned(name) {
				stats.Assignments = append(stats.Assignments, models.Assignment{
					PaperKey: p.Key,
					Title:    p.Title,
					Email:    r.Email,
					Action:   "primary",
				})
			}
		}
	}

	s.Logger.Info("Lauf abgeschlossen",
		zap.String("solver", s.Solver.Name()),
		zap.Float64("objective", stats.Objective),
		zap.Int("assignments", len(stats.Assignments)))
	return stats, nil
}

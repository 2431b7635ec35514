package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"pc-assign/models"
	"pc-assign/services"
	"pc-assign/solvers"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] allprefs.csv\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Weist Papers an PC-Mitglieder zu (MILP über externen Solver).\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n%s", pflag.CommandLine.FlagUsages())
}

func main() {
	var (
		scale    = pflag.BoolP("scale", "s", false, "Präferenzen pro Reviewer anhand beobachteter min/max skalieren (sonst -20/20)")
		noneg    = pflag.BoolP("noneg", "n", false, "keine Zuweisungen ohne positiven Score")
		minScore = pflag.Float64P("minscore", "m", 0.8, "Schwellwert für das Mindestinteresse pro Paper (0..1)")
		lengths  = pflag.StringP("lengths", "l", "", "Seitenzahlen aus CSV lesen und Seitenlast balancieren")
		ratio    = pflag.Float64P("ratio", "r", 1.5, "erlaubtes Vielfaches der durchschnittlichen Seitenlast")

		solverName = pflag.String("solver", "cbc", "Solver-Backend (cbc oder glpk)")
		solverBin  = pflag.String("solver-bin", "", "Pfad zum Solver-Binary (Default: im PATH)")
		out        = pflag.StringP("out", "o", "pcassignment.csv", "Pfad der Ausgabe-CSV")

		dropReviewers = pflag.StringArrayP("drop", "x", nil, "Reviewer (voller Name) komplett entfernen")
		dropPapers    = pflag.StringArray("drop-paper", nil, "Paper-ID komplett entfernen")
		forcePairs    = pflag.StringArrayP("force", "f", nil, "Zuweisung paper=reviewer erzwingen")
		forbidPairs   = pflag.StringArray("forbid", nil, "Zuweisung paper=reviewer verbieten")
		numRevs       = pflag.StringArray("nrev", nil, "Review-Anzahl eines Papers setzen (paper=anzahl)")
	)
	pflag.Usage = usage
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: genau eine Präferenz-CSV erwartet")
		usage()
		os.Exit(2)
	}
	if *minScore < 0 || *minScore > 1 {
		fmt.Fprintln(os.Stderr, "Error: --minscore muss in [0,1] liegen")
		usage()
		os.Exit(2)
	}
	if *ratio < 1 {
		fmt.Fprintln(os.Stderr, "Error: --ratio muss >= 1 sein")
		usage()
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	ops, err := buildOverrides(*dropReviewers, *dropPapers, *forcePairs, *forbidPairs, *numRevs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		usage()
		os.Exit(2)
	}

	loader := services.NewLoader(logger)
	store, err := loader.LoadPreferencesFile(pflag.Arg(0))
	if err != nil {
		logger.Fatal("Präferenzen konnten nicht geladen werden", zap.Error(err))
	}

	opts := services.DefaultSolveOptions()
	opts.ScalePerReviewer = *scale
	opts.NoNegative = *noneg
	opts.MinScore = *minScore
	opts.PagesRatio = *ratio
	if *lengths != "" {
		if err := loader.LoadLengthsFile(store, *lengths); err != nil {
			logger.Fatal("Lengths-CSV konnte nicht geladen werden", zap.Error(err))
		}
		opts.PageBalance = true
	}

	solver, err := services.NewSolver(*solverName, *solverBin, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		usage()
		os.Exit(2)
	}

	assigner := services.NewAssignService(solver, logger)
	stats, err := assigner.Run(context.Background(), store, ops, opts)
	if err != nil {
		if errors.Is(err, solvers.ErrInfeasible) {
			logger.Fatal("Modell ist unlösbar; Constraints lockern (--ratio, --minscore, --noneg) und erneut ausführen")
		}
		logger.Fatal("Lauf fehlgeschlagen", zap.Error(err))
	}

	if err := services.WriteAssignmentsFile(*out, stats.Assignments); err != nil {
		logger.Fatal("Ausgabe konnte nicht geschrieben werden", zap.Error(err))
	}

	logger.Info("Zuweisung geschrieben",
		zap.String("out", *out),
		zap.Int("papers", stats.NumPapers),
		zap.Int("reviewers", stats.NumReviewers),
		zap.Int("assignments", len(stats.Assignments)),
		zap.Float64("objective", stats.Objective))
	for _, w := range stats.Warnings {
		logger.Warn(w)
	}
}

// buildOverrides übersetzt die Override-Flags in die deklarative
// Operationsliste. Reviewer werden über den gefalteten Namen
// referenziert.
func buildOverrides(dropReviewers, dropPapers, forcePairs, forbidPairs, numRevs []string) ([]models.OverrideOp, error) {
	var ops []models.OverrideOp
	pos := 0
	add := func(op models.OverrideOp) {
		op.Position = pos
		pos++
		ops = append(ops, op)
	}

	for _, name := range dropReviewers {
		add(models.OverrideOp{Op: models.OverrideDropReviewer, ReviewerKey: services.FoldName(name)})
	}
	for _, key := range dropPapers {
		add(models.OverrideOp{Op: models.OverrideDropPaper, PaperKey: key})
	}
	for _, spec := range forcePairs {
		paper, reviewer, err := splitPair(spec)
		if err != nil {
			return nil, fmt.Errorf("--force %q: %w", spec, err)
		}
		add(models.OverrideOp{Op: models.OverrideForceAssign, PaperKey: paper, ReviewerKey: services.FoldName(reviewer)})
	}
	for _, spec := range forbidPairs {
		paper, reviewer, err := splitPair(spec)
		if err != nil {
			return nil, fmt.Errorf("--forbid %q: %w", spec, err)
		}
		add(models.OverrideOp{Op: models.OverrideForbidAssign, PaperKey: paper, ReviewerKey: services.FoldName(reviewer)})
	}
	for _, spec := range numRevs {
		paper, value, err := splitPair(spec)
		if err != nil {
			return nil, fmt.Errorf("--nrev %q: %w", spec, err)
		}
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 0 {
			return nil, fmt.Errorf("--nrev %q: ungültige anzahl %q", spec, value)
		}
		add(models.OverrideOp{Op: models.OverrideSetReviewCount, PaperKey: paper, Value: n})
	}
	return ops, nil
}

func splitPair(spec string) (string, string, error) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("format paper=wert erwartet")
	}
	return parts[0], parts[1], nil
}

package services

import (
	"fmt"

	"go.uber.org/zap"

	"pc-assign/models"
	"pc-assign/solvers"
)

// SolveOptions steuern Normalisierung und Constraint-Auswahl. Jede
// Constraint-Gruppe ist einzeln abschaltbar.
type SolveOptions struct {
	// Normalisierung
	ScalePerReviewer bool `json:"scale_per_reviewer"`
	FixedMin         int  `json:"fixed_min"`
	FixedMax         int  `json:"fixed_max"`

	// Constraint 1: exakte Review-Anzahl pro Paper
	ReviewCount bool `json:"review_count"`
	// Constraint 2: Konflikt-Ausschluss
	Conflicts bool `json:"conflicts"`
	// Constraint 3: balancierte Last (floor/ceil)
	BalanceLoad bool `json:"balance_load"`
	// Constraint 4: Seitenlast-Balance (braucht Lengths-Daten)
	PageBalance bool    `json:"page_balance"`
	PagesRatio  float64 `json:"pages_ratio"`
	// Constraint 5: Mindestinteresse pro Paper
	MinInterest bool    `json:"min_interest"`
	MinScore    float64 `json:"min_score"`
	// Constraint 6: keine Zuweisung ohne positiven Score
	NoNegative bool `json:"no_negative"`
}

// DefaultSolveOptions liefert die Standardkonfiguration: feste Spanne
// [-20,20], Constraints 1-3 und 5 aktiv, Schwellwert 0.8, Ratio 1.5.
func DefaultSolveOptions() SolveOptions {
	return SolveOptions{
		FixedMin:    -20,
		FixedMax:    20,
		ReviewCount: true,
		Conflicts:   true,
		BalanceLoad: true,
		PagesRatio:  1.5,
		MinInterest: true,
		MinScore:    0.8,
	}
}

// BuildResult bündelt das fertige Problem, die Variablen-Zuordnung und
// die beim Bauen gesammelten Warnungen.
type BuildResult struct {
	Problem  *solvers.Problem
	Warnings []string

	varByPair map[pairKey]string
}

type pairKey struct {
	paper    string
	reviewer string
}

// Var liefert den Variablennamen eines (Paper, Reviewer)-Paars.
func (r *BuildResult) Var(paperKey, reviewerKey string) (string, bool) {
	v, ok := r.varByPair[pairKey{paperKey, reviewerKey}]
	return v, ok
}

// ModelBuilder baut aus Store und normalisierten Scores das
// vollständige Optimierungsproblem. Normale Eingaben erzeugen nie
// einen Fehler, nur Warnungen.
type ModelBuilder struct {
	Logger *zap.Logger
}

// NewModelBuilder erstellt eine neue Instanz.
func NewModelBuilder(logger *zap.Logger) *ModelBuilder {
	return &ModelBuilder{Logger: logger}
}

// Build erzeugt Variablen, Zielfunktion und Constraints. pairOps sind
// die verbliebenen force/forbid-Overrides aus ApplyOverrides.
func (b *ModelBuilder) Build(store *PrefStore, scores NormalizedScores, pairOps []models.OverrideOp, opts SolveOptions) (*BuildResult, error) {
	if len(store.Papers) == 0 {
		return nil, fmt.Errorf("keine papers geladen")
	}
	if len(store.Reviewers) == 0 {
		return nil, fmt.Errorf("keine reviewer geladen")
	}

	res := &BuildResult{
		Problem:   &solvers.Problem{Name: "pc-assign review assignment"},
		varByPair: map[pairKey]string{},
	}
	prob := res.Problem

	// Eine Binärvariable pro (Paper, Reviewer)-Paar; Namen über
	// Indizes, damit sie LP-konform bleiben
	for i, p := range store.Papers {
		for j, r := range store.Reviewers {
			v := fmt.Sprintf("x_%d_%d", i, j)
			prob.AddVar(v)
			res.varByPair[pairKey{p.Key, r.Key}] = v
		}
	}

	// Zielfunktion: Summe normalisierter Score mal Entscheidung über
	// alle Scored-Paare; Unset-Paare tragen nichts bei
	for _, p := range store.Papers {
		for _, r := range store.Reviewers {
			if v, ok := scores.Get(p.Key, r.Key); ok {
				name, _ := res.Var(p.Key, r.Key)
				prob.AddObjectiveTerm(name, v)
			}
		}
	}

	// Constraint 1: exakte Review-Anzahl pro Paper
	if opts.ReviewCount {
		for i, p := range store.Papers {
			terms := make([]solvers.Term, 0, len(store.Reviewers))
			for _, r := range store.Reviewers {
				name, _ := res.Var(p.Key, r.Key)
				terms = append(terms, solvers.Term{Var: name, Coef: 1})
			}
			prob.AddConstraint(fmt.Sprintf("rev_%d", i), terms, solvers.SenseEQ, float64(p.NumReviews))
		}
	}

	// Constraint 2: Konflikte hart ausschließen
	if opts.Conflicts {
		for i, p := range store.Papers {
			for j, r := range store.Reviewers {
				if store.Pref(p.Key, r.Key).Kind != models.PrefConflict {
					continue
				}
				name, _ := res.Var(p.Key, r.Key)
				prob.AddConstraint(fmt.Sprintf("conf_%d_%d", i, j),
					[]solvers.Term{{Var: name, Coef: 1}}, solvers.SenseEQ, 0)
			}
		}
	}

	// Constraint 3: balancierte Last; Lasten differieren um höchstens 1
	if opts.BalanceLoad {
		total := store.TotalReviews()
		lo := total / len(store.Reviewers)
		hi := lo
		if total%len(store.Reviewers) != 0 {
			hi++
		}
		for j, r := range store.Reviewers {
			terms := make([]solvers.Term, 0, len(store.Papers))
			for _, p := range store.Papers {
				name, _ := res.Var(p.Key, r.Key)
				terms = append(terms, solvers.Term{Var: name, Coef: 1})
			}
			prob.AddConstraint(fmt.Sprintf("load_lo_%d", j), terms, solvers.SenseGE, float64(lo))
			prob.AddConstraint(fmt.Sprintf("load_hi_%d", j), terms, solvers.SenseLE, float64(hi))
		}
	}

	// Constraint 4: Seitenlast zwischen avg/X und avg*X halten
	if opts.PageBalance {
		ratio := opts.PagesRatio
		if ratio <= 0 {
			ratio = 1.5
		}
		totalPages := 0
		for _, p := range store.Papers {
			totalPages += p.NumPages * p.NumReviews
		}
		avg := float64(totalPages) / float64(len(store.Reviewers))
		for j, r := range store.Reviewers {
			terms := make([]solvers.Term, 0, len(store.Papers))
			for _, p := range store.Papers {
				name, _ := res.Var(p.Key, r.Key)
				terms = append(terms, solvers.Term{Var: name, Coef: float64(p.NumPages)})
			}
			prob.AddConstraint(fmt.Sprintf("pages_lo_%d", j), terms, solvers.SenseGE, avg/ratio)
			prob.AddConstraint(fmt.Sprintf("pages_hi_%d", j), terms, solvers.SenseLE, avg*ratio)
		}
	}

	// Constraint 5: mindestens ein zugewiesener Reviewer über dem
	// Schwellwert. Räumt kein Reviewer den Schwellwert, wird die
	// Bedingung mit Warnung übersprungen statt eine unerfüllbare
	// 0-Term-Constraint zu erzeugen.
	if opts.MinInterest {
		for i, p := range store.Papers {
			var terms []solvers.Term
			for _, r := range store.Reviewers {
				if v, ok := scores.Get(p.Key, r.Key); ok && v > opts.MinScore {
					name, _ := res.Var(p.Key, r.Key)
					terms = append(terms, solvers.Term{Var: name, Coef: 1})
				}
			}
			if len(terms) == 0 {
				w := fmt.Sprintf("kein reviewer über schwellwert %.2f für paper %s (%s)",
					opts.MinScore, p.Key, p.Title)
				res.Warnings = append(res.Warnings, w)
				b.Logger.Warn("Mindestinteresse-Constraint übersprungen",
					zap.String("paper", p.Key),
					zap.Float64("min_score", opts.MinScore))
				continue
			}
			prob.AddConstraint(fmt.Sprintf("interest_%d", i), terms, solvers.SenseGE, 1)
		}
	}

	// Constraint 6: Paare ohne Score oder mit Score <= 0 ausschließen
	if opts.NoNegative {
		for i, p := range store.Papers {
			for j, r := range store.Reviewers {
				pref := store.Pref(p.Key, r.Key)
				if pref.Kind == models.PrefConflict {
					continue // bereits durch Constraint 2 abgedeckt
				}
				if pref.Scored() && pref.Score > 0 {
					continue
				}
				name, _ := res.Var(p.Key, r.Key)
				prob.AddConstraint(fmt.Sprintf("noneg_%d_%d", i, j),
					[]solvers.Term{{Var: name, Coef: 1}}, solvers.SenseEQ, 0)
			}
		}
	}

	// Paar-Overrides: force/forbid als fixierende Constraints
	for k, op := range pairOps {
		name, ok := res.Var(op.PaperKey, op.ReviewerKey)
		if !ok {
			w := fmt.Sprintf("override %s: unbekanntes paar (%s, %s)", op.Op, op.PaperKey, op.ReviewerKey)
			res.Warnings = append(res.Warnings, w)
			b.Logger.Warn("Override übersprungen",
				zap.String("op", op.Op),
				zap.String("paper", op.PaperKey),
				zap.String("reviewer", op.ReviewerKey))
			continue
		}
		rhs := 0.0
		if op.Op == models.OverrideForceAssign {
			rhs = 1
		}
		prob.AddConstraint(fmt.Sprintf("override_%d", k),
			[]solvers.Term{{Var: name, Coef: 1}}, solvers.SenseEQ, rhs)
	}

	b.Logger.Info("Modell gebaut",
		zap.Int("vars", len(prob.Vars)),
		zap.Int("constraints", len(prob.Constraints)),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

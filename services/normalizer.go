package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrDegenerateRange: die Score-Spanne eines Reviewers ist leer
// (min == max), Normalisierung würde durch null teilen. Bewusste
// Entscheidung: harter Fehler statt stillschweigendem Fallback, siehe
// DESIGN.md.
var ErrDegenerateRange = errors.New("degenerate score range (min == max)")

// NormalizedScores hält die auf [0,1] skalierten Scores:
// Paper-Key -> Reviewer-Key -> Wert. Nur Scored-Paare haben Einträge;
// Konflikte und Unset tauchen hier nie auf.
type NormalizedScores map[string]map[string]float64

// Get liefert den normalisierten Score eines Paars.
func (n NormalizedScores) Get(paperKey, reviewerKey string) (float64, bool) {
	if m, ok := n[paperKey]; ok {
		v, ok := m[reviewerKey]
		return v, ok
	}
	return 0, false
}

// ScoreNormalizer skaliert Roh-Scores in den Bereich [0,1].
type ScoreNormalizer struct {
	Logger *zap.Logger
}

// NewScoreNormalizer erstellt eine neue Instanz.
func NewScoreNormalizer(logger *zap.Logger) *ScoreNormalizer {
	return &ScoreNormalizer{Logger: logger}
}

// Apply normalisiert alle Scored-Präferenzen des Stores. Bei
// perReviewer wird die beobachtete Spanne jedes Reviewers verwendet
// (immer inklusive 0, wie im HotCRP-Toolchain üblich), sonst die feste
// Spanne [fixedMin, fixedMax]. Die verwendeten Grenzen werden am
// Reviewer hinterlegt. Werte außerhalb der Spanne werden geklemmt,
// nie außerhalb von [0,1] geliefert.
func (n *ScoreNormalizer) Apply(store *PrefStore, perReviewer bool, fixedMin, fixedMax int) (NormalizedScores, error) {
	if !perReviewer && fixedMin == fixedMax {
		return nil, fmt.Errorf("%w: feste spanne [%d,%d]", ErrDegenerateRange, fixedMin, fixedMax)
	}

	for _, r := range store.Reviewers {
		if !perReviewer {
			r.ScoreMin, r.ScoreMax = fixedMin, fixedMax
			continue
		}

		// Beobachtete Spanne über alle Nicht-Konflikt-Scores,
		// immer um 0 herum aufgespannt
		lo, hi := 0, 0
		for _, p := range store.Papers {
			pref := store.Pref(p.Key, r.Key)
			if !pref.Scored() {
				continue
			}
			if pref.Score < lo {
				lo = pref.Score
			}
			if pref.Score > hi {
				hi = pref.Score
			}
		}
		if lo == hi {
			return nil, fmt.Errorf("%w: reviewer %q", ErrDegenerateRange, r.Name)
		}
		r.ScoreMin, r.ScoreMax = lo, hi
	}

	scores := NormalizedScores{}
	for _, p := range store.Papers {
		for _, r := range store.Reviewers {
			pref := store.Pref(p.Key, r.Key)
			if !pref.Scored() {
				continue
			}
			v := float64(pref.Score-r.ScoreMin) / float64(r.ScoreMax-r.ScoreMin)
			if m, ok := scores[p.Key]; ok {
				m[r.Key] = clamp01(v)
			} else {
				scores[p.Key] = map[string]float64{r.Key: clamp01(v)}
			}
		}
	}

	n.Logger.Debug("Scores normalisiert",
		zap.Bool("per_reviewer", perReviewer),
		zap.Int("papers", len(scores)))
	return scores, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pc-assign/models"
)

func scored(score int) models.Preference {
	return models.Preference{Kind: models.PrefScored, Score: score}
}

// exampleStore: zwei Papers, zwei Reviewer. A hat 10 auf P1 und einen
// Konflikt mit P2; B hat -5 auf P1 und 8 auf P2.
func exampleStore() *PrefStore {
	store := NewPrefStore()
	store.AddPaper(&models.Paper{Key: "P1", Title: "Paper Eins", NumReviews: 1})
	store.AddPaper(&models.Paper{Key: "P2", Title: "Paper Zwei", NumReviews: 1})
	store.AddReviewer(&models.Reviewer{Key: "a", Name: "A", Email: "a@example.org"})
	store.AddReviewer(&models.Reviewer{Key: "b", Name: "B", Email: "b@example.org"})
	store.SetPref("P1", "a", scored(10))
	store.SetPref("P2", "a", models.Preference{Kind: models.PrefConflict})
	store.SetPref("P1", "b", scored(-5))
	store.SetPref("P2", "b", scored(8))
	return store
}

func TestNormalizeFixedRange(t *testing.T) {
	store := exampleStore()
	norm := NewScoreNormalizer(zap.NewNop())

	scores, err := norm.Apply(store, false, -20, 20)
	require.NoError(t, err)

	v, ok := scores.Get("P1", "a")
	require.True(t, ok)
	assert.InDelta(t, 0.75, v, 1e-9)

	v, ok = scores.Get("P1", "b")
	require.True(t, ok)
	assert.InDelta(t, 0.375, v, 1e-9)

	v, ok = scores.Get("P2", "b")
	require.True(t, ok)
	assert.InDelta(t, 0.7, v, 1e-9)

	// Konflikte haben keinen normalisierten Score
	_, ok = scores.Get("P2", "a")
	assert.False(t, ok)

	// verwendete Grenzen werden am Reviewer hinterlegt
	assert.Equal(t, -20, store.Reviewers[0].ScoreMin)
	assert.Equal(t, 20, store.Reviewers[0].ScoreMax)
}

func TestNormalizeFixedRangeClamps(t *testing.T) {
	store := NewPrefStore()
	store.AddPaper(&models.Paper{Key: "P1", NumReviews: 1})
	store.AddReviewer(&models.Reviewer{Key: "a", Email: "a@example.org"})
	store.AddReviewer(&models.Reviewer{Key: "b", Email: "b@example.org"})
	store.SetPref("P1", "a", scored(35))
	store.SetPref("P1", "b", scored(-35))

	scores, err := NewScoreNormalizer(zap.NewNop()).Apply(store, false, -20, 20)
	require.NoError(t, err)

	v, _ := scores.Get("P1", "a")
	assert.InDelta(t, 1.0, v, 1e-9)
	v, _ = scores.Get("P1", "b")
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestNormalizeFixedRangeDegenerate(t *testing.T) {
	store := exampleStore()
	_, err := NewScoreNormalizer(zap.NewNop()).Apply(store, false, 5, 5)
	require.ErrorIs(t, err, ErrDegenerateRange)
}

func TestNormalizePerReviewer(t *testing.T) {
	store := NewPrefStore()
	store.AddPaper(&models.Paper{Key: "P1", NumReviews: 1})
	store.AddPaper(&models.Paper{Key: "P2", NumReviews: 1})
	store.AddReviewer(&models.Reviewer{Key: "a", Email: "a@example.org"})
	store.AddReviewer(&models.Reviewer{Key: "b", Email: "b@example.org"})
	// A: Spanne [-6,4]; B nur positive Scores, Spanne wird um 0
	// aufgespannt: [0,5]
	store.SetPref("P1", "a", scored(4))
	store.SetPref("P2", "a", scored(-6))
	store.SetPref("P1", "b", scored(5))
	store.SetPref("P2", "b", scored(2))

	scores, err := NewScoreNormalizer(zap.NewNop()).Apply(store, true, 0, 0)
	require.NoError(t, err)

	v, _ := scores.Get("P1", "a")
	assert.InDelta(t, 1.0, v, 1e-9)
	v, _ = scores.Get("P2", "a")
	assert.InDelta(t, 0.0, v, 1e-9)

	v, _ = scores.Get("P1", "b")
	assert.InDelta(t, 1.0, v, 1e-9)
	v, _ = scores.Get("P2", "b")
	assert.InDelta(t, 0.4, v, 1e-9)

	a, _ := store.Reviewer("a")
	assert.Equal(t, -6, a.ScoreMin)
	assert.Equal(t, 4, a.ScoreMax)
	b, _ := store.Reviewer("b")
	assert.Equal(t, 0, b.ScoreMin)
	assert.Equal(t, 5, b.ScoreMax)
}

func TestNormalizePerReviewerDegenerate(t *testing.T) {
	store := NewPrefStore()
	store.AddPaper(&models.Paper{Key: "P1", NumReviews: 1})
	store.AddReviewer(&models.Reviewer{Key: "a", Name: "Ohne Scores", Email: "a@example.org"})
	// keine Scored-Präferenz -> beobachtete Spanne [0,0]

	_, err := NewScoreNormalizer(zap.NewNop()).Apply(store, true, -20, 20)
	require.ErrorIs(t, err, ErrDegenerateRange)
	assert.Contains(t, err.Error(), "Ohne Scores")
}

func TestNormalizeIdempotentOnUnitRange(t *testing.T) {
	store := NewPrefStore()
	store.AddPaper(&models.Paper{Key: "P1", NumReviews: 1})
	store.AddReviewer(&models.Reviewer{Key: "a", Email: "a@example.org"})
	store.SetPref("P1", "a", scored(1))

	scores, err := NewScoreNormalizer(zap.NewNop()).Apply(store, false, 0, 1)
	require.NoError(t, err)
	v, _ := scores.Get("P1", "a")
	assert.InDelta(t, 1.0, v, 1e-9)
}

package cbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pc-assign/solvers"
)

func testProblem() *solvers.Problem {
	p := &solvers.Problem{}
	p.AddVar("x_0_0")
	p.AddVar("x_0_1")
	p.AddVar("x_1_1")
	p.AddObjectiveTerm("x_0_0", 0.75)
	p.AddObjectiveTerm("x_0_1", 0.375)
	p.AddObjectiveTerm("x_1_1", 0.7)
	return p
}

func TestParseSolutionOptimal(t *testing.T) {
	// CBC listet nur Nicht-Null-Variablen; x_0_1 fehlt und ist 0
	text := "Optimal - objective value -1.45000000\n" +
		"      0 x_0_0                       1                      -0.75\n" +
		"      2 x_1_1                       1                      -0.7\n"

	sol, err := ParseSolution(testProblem(), text)
	require.NoError(t, err)

	assert.True(t, sol.Assigned("x_0_0"))
	assert.True(t, sol.Assigned("x_1_1"))
	assert.False(t, sol.Assigned("x_0_1"))
	// Zielwert wird aus der Belegung berechnet, nicht aus der
	// Statuszeile übernommen (CBC meldet das negierte Vorzeichen)
	assert.InDelta(t, 1.45, sol.Objective, 1e-9)
}

func TestParseSolutionStarredRows(t *testing.T) {
	text := "Optimal - objective value 0.75000000\n" +
		"**      0 x_0_0                       1                       0.75\n"

	sol, err := ParseSolution(testProblem(), text)
	require.NoError(t, err)
	assert.True(t, sol.Assigned("x_0_0"))
}

func TestParseSolutionInfeasible(t *testing.T) {
	text := "Infeasible - objective value 0.00000000\n"
	_, err := ParseSolution(testProblem(), text)
	require.ErrorIs(t, err, solvers.ErrInfeasible)
}

func TestParseSolutionUnexpectedStatus(t *testing.T) {
	_, err := ParseSolution(testProblem(), "Unbounded - objective value 0\n")
	require.Error(t, err)
	assert.NotErrorIs(t, err, solvers.ErrInfeasible)
}

func TestParseSolutionIgnoresUnknownVars(t *testing.T) {
	text := "Optimal - objective value 0.00000000\n" +
		"      0 y_9_9                       1                       0\n" +
		"kaputte zeile\n"

	sol, err := ParseSolution(testProblem(), text)
	require.NoError(t, err)
	for _, v := range []string{"x_0_0", "x_0_1", "x_1_1"} {
		assert.False(t, sol.Assigned(v))
	}
}

func TestNewDefaultsBinPath(t *testing.T) {
	b := New("", nil)
	assert.Equal(t, "cbc", b.BinPath)
	assert.Equal(t, "cbc", b.Name())

	b = New("/opt/cbc/bin/cbc", nil)
	assert.Equal(t, "/opt/cbc/bin/cbc", b.BinPath)
}

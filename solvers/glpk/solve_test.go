package glpk

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

const optimalOutput = `Problem:    model
Rows:       2
Columns:    3 (3 integer, 3 binary)
Non-zeros:  4
Status:     INTEGER OPTIMAL
Objective:  obj = 1.45 (MAXimum)

   No.   Row name        Activity     Lower bound   Upper bound
------ ------------    ------------- ------------- -------------
     1 rev_0                       1             1             =

   No. Column name       Activity     Lower bound   Upper bound
------ ------------    ------------- ------------- -------------
     1 x_0_0        *              1             0             1
     2 x_0_1        *              0             0             1
     3 x_1_1        *              1             0             1

Integer feasibility conditions:
`

func TestParseSolutionOptimal(t *testing.T) {
	sol, err := ParseSolution(testProblem(), optimalOutput)
	require.NoError(t, err)

	assert.True(t, sol.Assigned("x_0_0"))
	assert.False(t, sol.Assigned("x_0_1"))
	assert.True(t, sol.Assigned("x_1_1"))
	assert.InDelta(t, 1.45, sol.Objective, 1e-9)
}

func TestParseSolutionUndefined(t *testing.T) {
	text := "Problem:    model\nStatus:     INTEGER UNDEFINED\n"
	_, err := ParseSolution(testProblem(), text)
	require.ErrorIs(t, err, solvers.ErrInfeasible)
}

func TestParseSolutionIgnoresRowBlock(t *testing.T) {
	// Row-Aktivitäten vor dem Column-Block dürfen keine Variablenwerte
	// setzen, auch wenn eine Row zufällig wie eine Variable heißt
	text := `Status:     INTEGER OPTIMAL

   No.   Row name        Activity     Lower bound   Upper bound
------ ------------    ------------- ------------- -------------
     1 x_0_0                       1             1             =

   No. Column name       Activity     Lower bound   Upper bound
------ ------------    ------------- ------------- -------------
     1 x_0_0        *              0             0             1
`
	sol, err := ParseSolution(testProblem(), text)
	require.NoError(t, err)
	assert.False(t, sol.Assigned("x_0_0"))
}

func TestNewDefaultsBinPath(t *testing.T) {
	b := New("", nil)
	assert.Equal(t, "glpsol", b.BinPath)
	assert.Equal(t, "glpk", b.Name())
}

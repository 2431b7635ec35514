package solvers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProblem() *Problem {
	p := &Problem{Name: "sample"}
	p.AddVar("x_0_0")
	p.AddVar("x_0_1")
	p.AddObjectiveTerm("x_0_0", 0.75)
	p.AddObjectiveTerm("x_0_1", 0.375)
	p.AddConstraint("rev_0", []Term{{Var: "x_0_0", Coef: 1}, {Var: "x_0_1", Coef: 1}}, SenseEQ, 1)
	p.AddConstraint("load_hi_0", []Term{{Var: "x_0_0", Coef: 1}}, SenseLE, 2)
	return p
}

func TestWriteLP(t *testing.T) {
	lp := WriteLP(sampleProblem())

	expected := "\\ sample\n" +
		"Maximize\n" +
		" obj: 0.75 x_0_0 + 0.375 x_0_1\n" +
		"Subject To\n" +
		" rev_0: 1 x_0_0 + 1 x_0_1 = 1\n" +
		" load_hi_0: 1 x_0_0 <= 2\n" +
		"Binary\n" +
		" x_0_0\n" +
		" x_0_1\n" +
		"End\n"
	assert.Equal(t, expected, lp)
}

func TestWriteLPNegativeCoefficients(t *testing.T) {
	p := &Problem{}
	p.AddVar("a")
	p.AddVar("b")
	p.AddObjectiveTerm("a", -0.5)
	p.AddObjectiveTerm("b", 1)

	lp := WriteLP(p)
	assert.Contains(t, lp, "obj: - 0.5 a + 1 b")
}

func TestWriteLPEmptyObjective(t *testing.T) {
	p := &Problem{}
	p.AddVar("a")
	p.AddConstraint("c0", []Term{{Var: "a", Coef: 1}}, SenseGE, 1)

	// leere Zielfunktion ist im LP-Format nicht erlaubt
	lp := WriteLP(p)
	assert.Contains(t, lp, "obj: 0 a")
}

func TestTrimFloat(t *testing.T) {
	assert.Equal(t, "1", trimFloat(1.0))
	assert.Equal(t, "0.375", trimFloat(0.375))
	assert.Equal(t, "0", trimFloat(0))
	assert.Equal(t, "-2.5", trimFloat(-2.5))
	assert.Equal(t, "13.333333", trimFloat(40.0/3.0))
}

func TestProblemEval(t *testing.T) {
	p := sampleProblem()
	obj := p.Eval(map[string]float64{"x_0_0": 1, "x_0_1": 0})
	assert.InDelta(t, 0.75, obj, 1e-9)

	// fehlende Variablen zählen als 0
	assert.InDelta(t, 0.375, p.Eval(map[string]float64{"x_0_1": 1}), 1e-9)
}

func TestSolutionAssigned(t *testing.T) {
	sol := &Solution{Values: map[string]float64{"a": 1, "b": 0.999999, "c": 0.0000001}}
	require.True(t, sol.Assigned("a"))
	assert.True(t, sol.Assigned("b"))
	assert.False(t, sol.Assigned("c"))
	assert.False(t, sol.Assigned("unbekannt"))
}

package solvers

import (
	"context"
	"errors"
)

// ErrInfeasible wird zurückgegeben, wenn der Solver keine zulässige
// Lösung findet. Der Aufrufer darf in diesem Fall keine Teilausgabe
// schreiben.
var ErrInfeasible = errors.New("model is infeasible")

// Solver ist das Interface, das jedes Solver-Backend (z.B. CBC, GLPK)
// implementieren muss. Das Backend ist ein Orakel: es erhält ein
// fertiges Maximierungsproblem über Binärvariablen und liefert eine
// optimale 0/1-Belegung oder ErrInfeasible. Eine Tie-Breaking-Regel
// zwischen gleich guten Optima wird nicht garantiert.
type Solver interface {
	// Solve löst das Problem. Die Suche kann beliebig lange dauern;
	// Abbruch nur über den Context.
	Solve(ctx context.Context, prob *Problem) (*Solution, error)

	// Name gibt den eindeutigen Namen des Backends zurück (z.B. "cbc").
	Name() string
}

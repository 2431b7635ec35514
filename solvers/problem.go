package solvers

// Sense einer linearen Nebenbedingung.
type Sense string

const (
	SenseLE Sense = "<="
	SenseGE Sense = ">="
	SenseEQ Sense = "="
)

// Term ist ein Koeffizient mal Variable.
type Term struct {
	Var  string
	Coef float64
}

// Constraint ist eine lineare (Un-)Gleichung über Binärvariablen.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem bündelt Zielfunktion, Nebenbedingungen und Variablenmenge
// eines Maximierungsproblems. Alle Variablen sind binär.
type Problem struct {
	Name        string
	Objective   []Term
	Constraints []Constraint
	Vars        []string
}

// AddVar registriert eine Binärvariable.
func (p *Problem) AddVar(name string) {
	p.Vars = append(p.Vars, name)
}

// AddObjectiveTerm hängt einen Term an die Zielfunktion an.
func (p *Problem) AddObjectiveTerm(v string, coef float64) {
	p.Objective = append(p.Objective, Term{Var: v, Coef: coef})
}

// AddConstraint hängt eine Nebenbedingung an.
func (p *Problem) AddConstraint(name string, terms []Term, sense Sense, rhs float64) {
	p.Constraints = append(p.Constraints, Constraint{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

// Eval berechnet den Zielfunktionswert für eine Belegung. Die Backends
// nutzen das statt des vom Solver berichteten Werts, da CBC bei
// Maximierung das Vorzeichen des intern minimierten Problems ausgibt.
func (p *Problem) Eval(values map[string]float64) float64 {
	var sum float64
	for _, t := range p.Objective {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// Solution ist die vom Backend gelieferte Belegung. Werte können
// Fließkomma-0/1 sein; der Aufrufer interpretiert alles > 0.5 als
// zugewiesen.
type Solution struct {
	Values    map[string]float64
	Objective float64
}

// Assigned meldet, ob eine Variable in der Lösung gesetzt ist.
func (s *Solution) Assigned(v string) bool {
	return s.Values[v] > 0.5
}

package solvers

import (
	"fmt"
	"strings"
)

// WriteLP rendert das Problem im CPLEX-LP-Format, das sowohl CBC als
// auch glpsol direkt einlesen. Variablennamen müssen bereits
// LP-konform sein (der Model Builder vergibt Index-basierte Namen).
func WriteLP(p *Problem) string {
	var b strings.Builder

	if p.Name != "" {
		fmt.Fprintf(&b, "\\ %s\n", p.Name)
	}

	b.WriteString("Maximize\n obj:")
	if len(p.Objective) == 0 && len(p.Vars) > 0 {
		// Leere Zielfunktion ist im LP-Format nicht erlaubt
		fmt.Fprintf(&b, " 0 %s", p.Vars[0])
	}
	writeTerms(&b, p.Objective)
	b.WriteString("\n")

	b.WriteString("Subject To\n")
	for _, c := range p.Constraints {
		fmt.Fprintf(&b, " %s:", c.Name)
		writeTerms(&b, c.Terms)
		fmt.Fprintf(&b, " %s %s\n", c.Sense, trimFloat(c.RHS))
	}

	b.WriteString("Binary\n")
	for _, v := range p.Vars {
		fmt.Fprintf(&b, " %s\n", v)
	}
	b.WriteString("End\n")
	return b.String()
}

func writeTerms(b *strings.Builder, terms []Term) {
	for i, t := range terms {
		coef := t.Coef
		sign := "+"
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		if i == 0 && sign == "+" {
			fmt.Fprintf(b, " %s %s", trimFloat(coef), t.Var)
		} else {
			fmt.Fprintf(b, " %s %s %s", sign, trimFloat(coef), t.Var)
		}
	}
}

// trimFloat formatiert ohne überflüssige Nullen.
func trimFloat(f float64) string {
	s := fmt.Sprintf("%.6f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

package glpk

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pc-assign/solvers"
)

// Backend delegiert an glpsol aus dem GNU-Linear-Programming-Kit.
type Backend struct {
	BinPath string
	Logger  *zap.Logger
}

// New erstellt ein GLPK-Backend. binPath leer bedeutet "glpsol" im PATH.
func New(binPath string, logger *zap.Logger) *Backend {
	if binPath == "" {
		binPath = "glpsol"
	}
	return &Backend{BinPath: binPath, Logger: logger}
}

// Name gibt den Namen des Backends zurück.
func (b *Backend) Name() string {
	return "glpk"
}

// Solve schreibt das LP-File, startet glpsol und parst die Lösung.
func (b *Backend) Solve(ctx context.Context, prob *solvers.Problem) (*solvers.Solution, error) {
	dir, err := os.MkdirTemp("", "pc-assign-glpk-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	lpPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "model.sol")
	if err := os.WriteFile(lpPath, []byte(solvers.WriteLP(prob)), 0o600); err != nil {
		return nil, err
	}

	b.Logger.Info("Starte GLPK-Solver",
		zap.Int("vars", len(prob.Vars)),
		zap.Int("constraints", len(prob.Constraints)))

	cmd := exec.CommandContext(ctx, b.BinPath, "--lp", lpPath, "-o", solPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("glpsol aufruf fehlgeschlagen: %w: %s", err, bytes.TrimSpace(out))
	}
	// glpsol beendet sich bei Unlösbarkeit mit Exit-Code 0 und meldet
	// den Status nur im Output
	if bytes.Contains(out, []byte("HAS NO INTEGER FEASIBLE SOLUTION")) ||
		bytes.Contains(out, []byte("HAS NO FEASIBLE SOLUTION")) {
		return nil, solvers.ErrInfeasible
	}

	data, err := os.ReadFile(solPath)
	if err != nil {
		return nil, fmt.Errorf("glpsol solution-file fehlt: %w", err)
	}
	return ParseSolution(prob, string(data))
}

// ParseSolution liest das glpsol-Textformat (-o). Relevant sind die
// Status-Zeile und der "Column name"-Block mit den Aktivitäten.
func ParseSolution(prob *solvers.Problem, text string) (*solvers.Solution, error) {
	known := make(map[string]bool, len(prob.Vars))
	values := make(map[string]float64, len(prob.Vars))
	for _, v := range prob.Vars {
		known[v] = true
		values[v] = 0
	}

	inColumns := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "Status:") {
			status := strings.ToUpper(trimmed)
			if strings.Contains(status, "EMPTY") || strings.Contains(status, "UNDEFINED") ||
				strings.Contains(status, "INFEASIBLE") {
				return nil, solvers.ErrInfeasible
			}
			continue
		}
		if strings.Contains(line, "Column name") {
			inColumns = true
			continue
		}
		if !inColumns {
			continue
		}
		if trimmed == "" {
			inColumns = false
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 2 || strings.HasPrefix(fields[0], "-") {
			continue
		}
		name := fields[1]
		if !known[name] {
			continue
		}
		// Aktivität ist das erste numerische Feld nach dem Namen
		// (ein "*" markiert Basis-/Integer-Spalten und wird übersprungen)
		for _, f := range fields[2:] {
			if val, err := strconv.ParseFloat(f, 64); err == nil {
				values[name] = val
				break
			}
		}
	}

	return &solvers.Solution{Values: values, Objective: prob.Eval(values)}, nil
}

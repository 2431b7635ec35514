package cbc

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

// Backend delegiert an das Coin-OR-CBC-Binary: Modell als LP-Datei
// schreiben, cbc aufrufen, Solution-File einlesen.
type Backend struct {
	BinPath string
	Logger  *zap.Logger
}

// New erstellt ein CBC-Backend. binPath leer bedeutet "cbc" im PATH.
func New(binPath string, logger *zap.Logger) *Backend {
	if binPath == "" {
		binPath = "cbc"
	}
	return &Backend{BinPath: binPath, Logger: logger}
}

// Name gibt den Namen des Backends zurück.
func (b *Backend) Name() string {
	return "cbc"
}

// Solve schreibt das LP-File, startet cbc und parst die Lösung.
func (b *Backend) Solve(ctx context.Context, prob *solvers.Problem) (*solvers.Solution, error) {
	dir, err := os.MkdirTemp("", "pc-assign-cbc-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	lpPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "model.sol")
	if err := os.WriteFile(lpPath, []byte(solvers.WriteLP(prob)), 0o600); err != nil {
		return nil, err
	}

	b.Logger.Info("Starte CBC-Solver",
		zap.Int("vars", len(prob.Vars)),
		zap.Int("constraints", len(prob.Constraints)))

	cmd := exec.CommandContext(ctx, b.BinPath, lpPath, "solve", "solution", solPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("cbc aufruf fehlgeschlagen: %w: %s", err, bytes.TrimSpace(out))
	}

	data, err := os.ReadFile(solPath)
	if err != nil {
		return nil, fmt.Errorf("cbc solution-file fehlt: %w", err)
	}
	return ParseSolution(prob, string(data))
}

// ParseSolution liest das CBC-Solution-File. Erste Zeile ist die
// Statuszeile ("Optimal - objective value ..."), danach je Zeile
// Index, Variablenname, Wert, reduzierte Kosten. Nicht aufgeführte
// Variablen sind 0.
func ParseSolution(prob *solvers.Problem, text string) (*solvers.Solution, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("leeres cbc solution-file")
	}

	status := strings.ToLower(lines[0])
	switch {
	case strings.HasPrefix(status, "infeasible"):
		return nil, solvers.ErrInfeasible
	case strings.HasPrefix(status, "optimal"):
		// weiter unten parsen
	default:
		return nil, fmt.Errorf("unerwarteter cbc-status: %q", lines[0])
	}

	known := make(map[string]bool, len(prob.Vars))
	values := make(map[string]float64, len(prob.Vars))
	for _, v := range prob.Vars {
		known[v] = true
		values[v] = 0
	}

	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		// CBC markiert Zeilen teils mit "**" am Anfang
		if fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 || !known[fields[1]] {
			continue
		}
		val, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		values[fields[1]] = val
	}

	// Zielwert selbst berechnen: CBC gibt bei Maximierung das
	// Vorzeichen des intern minimierten Problems aus
	return &solvers.Solution{Values: values, Objective: prob.Eval(values)}, nil
}

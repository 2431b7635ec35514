package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"pc-assign/models"
)

// WriteAssignments schreibt die Lösung als HotCRP-Assignment-CSV mit
// dem Header paper,action,email,title. Das Action-Label ist immer
// "primary".
func WriteAssignments(w io.Writer, assignments []models.Assignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"paper", "action", "email", "title"}); err != nil {
		return err
	}
	for _, a := range assignments {
		action := a.Action
		if action == "" {
			action = "primary"
		}
		if err := cw.Write([]string{a.PaperKey, action, a.Email, a.Title}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAssignmentsFile schreibt die Lösung in eine Datei. Die Datei
// wird erst bei erfolgreichem Solve angelegt, nie bei Unlösbarkeit.
func WriteAssignmentsFile(path string, assignments []models.Assignment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ausgabedatei konnte nicht angelegt werden: %w", err)
	}
	defer f.Close()
	return WriteAssignments(f, assignments)
}

// ReadAssignments parst eine Assignment-CSV zurück in eine Zuordnung
// Paper-Key -> Menge zugewiesener E-Mails. Nur "primary"-Zeilen
// zählen. Wird vom Matrix-Tool genutzt, um eine bestehende Zuweisung
// einzufärben.
func ReadAssignments(r io.Reader) (map[string]map[string]bool, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("assignment-csv ohne header: %w", err)
	}
	cols, err := columnIndex(header, []string{"paper", "action", "email"})
	if err != nil {
		return nil, err
	}

	assigned := map[string]map[string]bool{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return assigned, nil
		}
		if err != nil {
			return nil, err
		}
		if rec[cols["action"]] != "primary" {
			continue
		}
		paper := rec[cols["paper"]]
		if assigned[paper] == nil {
			assigned[paper] = map[string]bool{}
		}
		assigned[paper][rec[cols["email"]]] = true
	}
}

// ReadAssignmentsFile liest eine Assignment-CSV von einem Pfad.
func ReadAssignmentsFile(path string) (map[string]map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("assignment-csv konnte nicht geöffnet werden: %w", err)
	}
	defer f.Close()
	return ReadAssignments(f)
}

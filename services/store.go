package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pc-assign/models"
)

// Pflichtspalten der Präferenz-CSV (HotCRP-Export "PC review preferences").
var requiredPrefColumns = []string{
	"paper", "title", "first", "last", "email",
	"topic_score", "preference", "conflict",
}

// PrefStore hält alle geladenen Papers, Reviewer und Präferenzen eines
// Laufs. Der Store ist der explizite Pipeline-Kontext: er wird einmal
// befüllt und danach nur noch gelesen (abgesehen von Overrides vor der
// Modellerstellung).
type PrefStore struct {
	Papers    []*models.Paper
	Reviewers []*models.Reviewer

	prefs       map[string]map[string]models.Preference
	paperIdx    map[string]*models.Paper
	reviewerIdx map[string]*models.Reviewer
}

// NewPrefStore erstellt einen leeren Store.
func NewPrefStore() *PrefStore {
	return &PrefStore{
		prefs:       map[string]map[string]models.Preference{},
		paperIdx:    map[string]*models.Paper{},
		reviewerIdx: map[string]*models.Reviewer{},
	}
}

// AddPaper registriert ein Paper, falls noch nicht vorhanden, und gibt
// es zurück.
func (s *PrefStore) AddPaper(p *models.Paper) *models.Paper {
	if existing, ok := s.paperIdx[p.Key]; ok {
		return existing
	}
	s.Papers = append(s.Papers, p)
	s.paperIdx[p.Key] = p
	return p
}

// AddReviewer registriert ein PC-Mitglied, falls noch nicht vorhanden.
func (s *PrefStore) AddReviewer(r *models.Reviewer) *models.Reviewer {
	if existing, ok := s.reviewerIdx[r.Key]; ok {
		return existing
	}
	s.Reviewers = append(s.Reviewers, r)
	s.reviewerIdx[r.Key] = r
	return r
}

// Paper liefert ein Paper per Schlüssel.
func (s *PrefStore) Paper(key string) (*models.Paper, bool) {
	p, ok := s.paperIdx[key]
	return p, ok
}

// Reviewer liefert ein PC-Mitglied per Schlüssel.
func (s *PrefStore) Reviewer(key string) (*models.Reviewer, bool) {
	r, ok := s.reviewerIdx[key]
	return r, ok
}

// SetPref setzt die Präferenz eines (Paper, Reviewer)-Paars. Mehrfache
// Zeilen für dasselbe Paar überschreiben sich (letzte gewinnt).
func (s *PrefStore) SetPref(paperKey, reviewerKey string, pref models.Preference) {
	m, ok := s.prefs[paperKey]
	if !ok {
		m = map[string]models.Preference{}
		s.prefs[paperKey] = m
	}
	m[reviewerKey] = pref
}

// Pref liefert die Präferenz eines Paars; fehlende Einträge sind Unset.
func (s *PrefStore) Pref(paperKey, reviewerKey string) models.Preference {
	if m, ok := s.prefs[paperKey]; ok {
		if p, ok := m[reviewerKey]; ok {
			return p
		}
	}
	return models.Preference{Kind: models.PrefUnset}
}

// RemovePaper entfernt ein Paper samt Präferenzen.
func (s *PrefStore) RemovePaper(key string) bool {
	if _, ok := s.paperIdx[key]; !ok {
		return false
	}
	delete(s.paperIdx, key)
	delete(s.prefs, key)
	for i, p := range s.Papers {
		if p.Key == key {
			s.Papers = append(s.Papers[:i], s.Papers[i+1:]...)
			break
		}
	}
	return true
}

// RemoveReviewer entfernt ein PC-Mitglied samt Präferenzen.
func (s *PrefStore) RemoveReviewer(key string) bool {
	if _, ok := s.reviewerIdx[key]; !ok {
		return false
	}
	delete(s.reviewerIdx, key)
	for _, m := range s.prefs {
		delete(m, key)
	}
	for i, r := range s.Reviewers {
		if r.Key == key {
			s.Reviewers = append(s.Reviewers[:i], s.Reviewers[i+1:]...)
			break
		}
	}
	return true
}

// TotalReviews summiert n_rev über alle Papers.
func (s *PrefStore) TotalReviews() int {
	total := 0
	for _, p := range s.Papers {
		total += p.NumReviews
	}
	return total
}

// ApplyOverrides wendet die deklarative Override-Liste in Positions-
// Reihenfolge an. Store-Operationen (drop_*, set_review_count) werden
// sofort ausgeführt; Paar-Operationen (force/forbid) werden unverändert
// zurückgegeben und vom Model Builder in Constraints übersetzt.
// Unbekannte Schlüssel sind Warnungen, keine Fehler.
func (s *PrefStore) ApplyOverrides(ops []models.OverrideOp, log *zap.Logger) ([]models.OverrideOp, error) {
	var pairOps []models.OverrideOp
	for _, op := range ops {
		switch op.Op {
		case models.OverrideDropReviewer:
			if !s.RemoveReviewer(op.ReviewerKey) {
				log.Warn("Override: Reviewer nicht gefunden", zap.String("reviewer", op.ReviewerKey))
			}
		case models.OverrideDropPaper:
			if !s.RemovePaper(op.PaperKey) {
				log.Warn("Override: Paper nicht gefunden", zap.String("paper", op.PaperKey))
			}
		case models.OverrideSetReviewCount:
			p, ok := s.Paper(op.PaperKey)
			if !ok {
				log.Warn("Override: Paper nicht gefunden", zap.String("paper", op.PaperKey))
				continue
			}
			p.NumReviews = op.Value
		case models.OverrideForceAssign, models.OverrideForbidAssign:
			pairOps = append(pairOps, op)
		default:
			return nil, fmt.Errorf("unbekannte override-operation %q", op.Op)
		}
	}
	return pairOps, nil
}

// Loader parst HotCRP-CSV-Exporte in einen PrefStore.
type Loader struct {
	Logger *zap.Logger

	// Defaults für neu angelegte Papers
	DefaultNumRev   int
	DefaultNumPages int
}

// NewLoader erstellt einen Loader mit den üblichen Defaults (3 Reviews,
// 20 Seiten).
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{Logger: logger, DefaultNumRev: 3, DefaultNumPages: 20}
}

// LoadPreferencesFile lädt die Präferenz-CSV von einem Pfad.
func (l *Loader) LoadPreferencesFile(path string) (*PrefStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("präferenz-csv konnte nicht geöffnet werden: %w", err)
	}
	defer f.Close()
	return l.LoadPreferences(f)
}

// LoadPreferences parst den Präferenz-Export. Effektiver Score ist
// "preference", falls gesetzt, sonst "topic_score"; ein Konflikt-Marker
// überschreibt beides. Fehlende Pflichtspalten brechen vor jeder
// Modellarbeit ab.
func (l *Loader) LoadPreferences(r io.Reader) (*PrefStore, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("präferenz-csv ohne header: %w", err)
	}
	cols, err := columnIndex(header, requiredPrefColumns)
	if err != nil {
		return nil, err
	}

	store := NewPrefStore()
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("präferenz-csv zeile %d: %w", line+1, err)
		}
		line++

		paper := store.AddPaper(&models.Paper{
			Key:        rec[cols["paper"]],
			Title:      rec[cols["title"]],
			NumReviews: l.DefaultNumRev,
			NumPages:   l.DefaultNumPages,
		})

		name := rec[cols["first"]] + " " + rec[cols["last"]]
		key := FoldName(name)
		email := rec[cols["email"]]
		if existing, ok := store.Reviewer(key); ok && existing.Email != email {
			return nil, fmt.Errorf("reviewer-schlüssel %q nicht eindeutig (%s vs. %s)",
				key, existing.Email, email)
		}
		reviewer := store.AddReviewer(&models.Reviewer{Key: key, Name: name, Email: email})

		pref, err := parsePreference(rec[cols["preference"]], rec[cols["topic_score"]], rec[cols["conflict"]])
		if err != nil {
			return nil, fmt.Errorf("präferenz-csv zeile %d: %w", line, err)
		}
		store.SetPref(paper.Key, reviewer.Key, pref)
	}

	l.Logger.Info("Präferenzen geladen",
		zap.Int("papers", len(store.Papers)),
		zap.Int("reviewers", len(store.Reviewers)))
	return store, nil
}

// LoadLengthsFile lädt die optionale Seitenzahl-CSV von einem Pfad.
func (l *Loader) LoadLengthsFile(store *PrefStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("lengths-csv konnte nicht geöffnet werden: %w", err)
	}
	defer f.Close()
	return l.LoadLengths(store, f)
}

// LoadLengths überschreibt Seitenzahlen aus der Lengths-CSV (Spalten
// "ID" und "Pages"). Unbekannte Paper-IDs sind Warnungen.
func (l *Loader) LoadLengths(store *PrefStore, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("lengths-csv ohne header: %w", err)
	}
	cols, err := columnIndex(header, []string{"ID", "Pages"})
	if err != nil {
		return err
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lengths-csv zeile %d: %w", line+1, err)
		}
		line++

		key := rec[cols["ID"]]
		pages, err := strconv.Atoi(strings.TrimSpace(rec[cols["Pages"]]))
		if err != nil {
			return fmt.Errorf("lengths-csv zeile %d: ungültige seitenzahl %q", line, rec[cols["Pages"]])
		}
		p, ok := store.Paper(key)
		if !ok {
			l.Logger.Warn("Lengths-CSV: unbekanntes Paper", zap.String("paper", key))
			continue
		}
		p.NumPages = pages
	}
}

// parsePreference übersetzt die drei Score-Spalten in die getaggte
// Variante. Leere preference- und topic_score-Spalten sind Unset.
func parsePreference(preference, topicScore, conflict string) (models.Preference, error) {
	if strings.EqualFold(strings.TrimSpace(conflict), "conflict") {
		return models.Preference{Kind: models.PrefConflict}, nil
	}

	raw, fromTopic := strings.TrimSpace(preference), false
	if raw == "" {
		raw, fromTopic = strings.TrimSpace(topicScore), true
	}
	if raw == "" {
		return models.Preference{Kind: models.PrefUnset}, nil
	}

	score, err := strconv.Atoi(raw)
	if err != nil {
		return models.Preference{}, fmt.Errorf("ungültiger score %q", raw)
	}
	return models.Preference{Kind: models.PrefScored, Score: score, FromTopic: fromTopic}, nil
}

// columnIndex prüft Pflichtspalten und liefert Name -> Spaltenindex.
func columnIndex(header, required []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("pflichtspalte %q fehlt in der csv", name)
		}
	}
	return cols, nil
}

// FoldName leitet den Reviewer-Schlüssel aus dem vollen Namen ab:
// Diakritika entfernen, Whitespace normalisieren, Kleinschreibung.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

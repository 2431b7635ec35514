package models

import (
	"time"
)

// PrefKind unterscheidet die drei Zustände einer Präferenz. Der alte
// Sentinel-Wert -100 aus dem HotCRP-Export wird beim Laden in die
// Conflict-Variante übersetzt und taucht im Modell nicht mehr auf.
type PrefKind int

const (
	// PrefUnset: keine Präferenz angegeben
	PrefUnset PrefKind = iota
	// PrefScored: expliziter Score (preference) oder Topic-Score
	PrefScored
	// PrefConflict: harter Konflikt, Zuweisung verboten
	PrefConflict
)

// String liefert das Kürzel, das auch die Matrix-Ausgabe verwendet.
func (k PrefKind) String() string {
	switch k {
	case PrefScored:
		return "P"
	case PrefConflict:
		return "C"
	default:
		return "?"
	}
}

// Preference ist die getaggte In-Memory-Variante einer (Paper, Reviewer)-
// Beziehung: Scored(value) | Conflict | Unset.
type Preference struct {
	Kind  PrefKind
	Score int
	// FromTopic markiert Scores, die aus topic_score statt aus einer
	// manuellen Präferenz stammen (Marker "T" in der Matrix)
	FromTopic bool
}

// Scored meldet, ob ein verwertbarer Score vorliegt.
func (p Preference) Scored() bool {
	return p.Kind == PrefScored
}

// PreferenceRecord ist die persistierte Form einer Präferenz für den
// Service-Modus.
type PreferenceRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PaperKey    string `json:"paper_key" gorm:"index:idx_pref_pair,unique;not null"`
	ReviewerKey string `json:"reviewer_key" gorm:"index:idx_pref_pair,unique;not null"`

	// Kind als Kürzel ("P", "T", "C"); Score nur bei P/T gültig
	Kind  string `json:"kind" gorm:"size:1;not null"`
	Score int    `json:"score"`
}

// TableName gibt explizit den Tabellennamen an.
func (PreferenceRecord) TableName() string {
	return "preferences"
}

// Preference übersetzt den persistierten Datensatz zurück in die
// getaggte Variante.
func (r PreferenceRecord) Preference() Preference {
	switch r.Kind {
	case "C":
		return Preference{Kind: PrefConflict}
	case "T":
		return Preference{Kind: PrefScored, Score: r.Score, FromTopic: true}
	case "P":
		return Preference{Kind: PrefScored, Score: r.Score}
	default:
		return Preference{Kind: PrefUnset}
	}
}

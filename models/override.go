package models

import (
	"time"
)

// Override-Operationen, in fester Reihenfolge vor der Constraint-
// Generierung angewendet. Ersetzt die früheren Ad-hoc-Eingriffe im
// Code durch eine deklarative Liste.
const (
	OverrideDropReviewer   = "drop_reviewer"    // entfernt ein PC-Mitglied komplett
	OverrideDropPaper      = "drop_paper"       // entfernt ein Paper komplett
	OverrideForceAssign    = "force_assign"     // erzwingt decision[p,r] == 1
	OverrideForbidAssign   = "forbid_assign"    // erzwingt decision[p,r] == 0
	OverrideSetReviewCount = "set_review_count" // setzt n_rev eines Papers
)

// OverrideOp ist eine einzelne manuelle Anpassung.
type OverrideOp struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	// Position bestimmt die Anwendungsreihenfolge
	Position int    `json:"position" gorm:"index"`
	Op       string `json:"op" gorm:"not null"`

	PaperKey    string `json:"paper_key,omitempty"`
	ReviewerKey string `json:"reviewer_key,omitempty"`

	// Value wird nur von set_review_count genutzt
	Value int `json:"value,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (OverrideOp) TableName() string {
	return "override_ops"
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Run-Status
const (
	RunStatusRunning    = "running"
	RunStatusSolved     = "solved"
	RunStatusInfeasible = "infeasible"
	RunStatusFailed     = "failed"
)

// AssignmentRun speichert das Ergebnis eines Solver-Laufs.
type AssignmentRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status    string  `json:"status" gorm:"index;default:'running'"`
	Solver    string  `json:"solver"`
	Objective float64 `json:"objective"`

	NumPapers      int `json:"num_papers"`
	NumReviewers   int `json:"num_reviewers"`
	NumAssignments int `json:"num_assignments"`

	// Snapshot der Solve-Optionen als JSON
	Options datatypes.JSON `json:"options" gorm:"type:jsonb"`

	// Warnungen aus dem Model Builder (eine pro Zeile)
	Warnings string `json:"warnings,omitempty" gorm:"type:text"`
	Error    string `json:"error,omitempty" gorm:"type:text"`

	// Link auf die archivierte Ergebnis-CSV in S3
	S3Link string `json:"s3_link,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (AssignmentRun) TableName() string {
	return "assignment_runs"
}

// Assignment ist eine einzelne (Paper, Reviewer)-Zuweisung einer Lösung.
type Assignment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	RunID uint `json:"run_id" gorm:"index"`

	PaperKey string `json:"paper_key" gorm:"index"`
	Title    string `json:"title"`
	Email    string `json:"email"`

	// HotCRP-Action-Label, aktuell immer "primary"
	Action string `json:"action" gorm:"default:'primary'"`
}

// TableName gibt explizit den Tabellennamen an.
func (Assignment) TableName() string {
	return "assignments"
}

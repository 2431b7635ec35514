package models

import (
	"time"
)

// Reviewer repräsentiert ein PC-Mitglied.
type Reviewer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Schlüssel abgeleitet aus dem vollen Namen (diakritik-gefaltet),
	// muss über das gesamte PC eindeutig sein
	Key   string `json:"key" gorm:"uniqueIndex;not null"`
	Name  string `json:"name"`
	Email string `json:"email" gorm:"index"`

	// Rohwert-Grenzen für die Normalisierung; bei fester Skala
	// konstant, bei --scale aus den beobachteten Scores berechnet
	ScoreMin int `json:"score_min" gorm:"default:-20"`
	ScoreMax int `json:"score_max" gorm:"default:20"`
}

// TableName gibt explizit den Tabellennamen an.
func (Reviewer) TableName() string {
	return "reviewers"
}

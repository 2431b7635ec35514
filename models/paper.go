package models

import (
	"time"
)

// Paper repräsentiert eine eingereichte Arbeit aus dem HotCRP-Export.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// HotCRP-Paper-ID, eindeutiger fachlicher Schlüssel
	Key   string `json:"key" gorm:"uniqueIndex;not null"`
	Title string `json:"title"`

	// Anzahl benötigter Reviews pro Paper (Default 3)
	NumReviews int `json:"num_reviews" gorm:"default:3"`

	// Seitenzahl, überschreibbar durch die Lengths-CSV (Default 20)
	NumPages int `json:"num_pages" gorm:"default:20"`
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "papers"
}

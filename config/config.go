package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Solver-Backend ("cbc" oder "glpk") und optionaler Binary-Pfad
	Solver        string `envconfig:"SOLVER" default:"cbc"`
	SolverBinPath string `envconfig:"SOLVER_BIN_PATH"`

	// Defaults für die Solve-Optionen
	ScoreMin        int     `envconfig:"SCORE_MIN" default:"-20"`
	ScoreMax        int     `envconfig:"SCORE_MAX" default:"20"`
	ScalePerUser    bool    `envconfig:"SCALE_PER_USER" default:"false"`
	MinScore        float64 `envconfig:"MIN_SCORE" default:"0.8"`
	PagesRatio      float64 `envconfig:"PAGES_RATIO" default:"1.5"`
	DefaultNumRev   int     `envconfig:"DEFAULT_NUM_REV" default:"3"`
	DefaultNumPages int     `envconfig:"DEFAULT_NUM_PAGES" default:"20"`

	// Zeitplan für automatische Re-Solves, leer = deaktiviert
	CronSchedule string `envconfig:"CRON_SCHEDULE"`

	// S3-Archivierung der Ergebnis-CSVs (optional; leerer Bucket
	// deaktiviert den Upload)
	S3Key    string `envconfig:"ASSIGN_S3_KEY"`
	S3Secret string `envconfig:"ASSIGN_S3_SECRET"`
	S3URL    string `envconfig:"ASSIGN_S3_URL"`
	S3Region string `envconfig:"ASSIGN_S3_REGION"`
	S3Bucket string `envconfig:"ASSIGN_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

// Sichert die Tabellen des Zuweisungsdienstes per pg_dump nach S3 und
// behält nur die jüngsten Stände.
package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"pc-assign/config"
	"pc-assign/storage"
)

// Nur die Tabellen des Dienstes; andere Schemata derselben Datenbank
// gehören nicht ins Backup.
var backupTables = []string{
	"papers", "reviewers", "preferences",
	"override_ops", "assignment_runs", "assignments",
}

// BackupConfig hält das Backup-Ziel. Die Datenbank-Zugangsdaten kommen
// aus der regulären Dienst-Konfiguration (DB_*).
type BackupConfig struct {
	Bucket    string `envconfig:"ASSIGN_BACKUP_S3_BUCKET" required:"true"`
	Endpoint  string `envconfig:"ASSIGN_BACKUP_S3_URL" required:"true"`
	AccessKey string `envconfig:"ASSIGN_BACKUP_S3_KEY" required:"true"`
	SecretKey string `envconfig:"ASSIGN_BACKUP_S3_SECRET" required:"true"`
	Region    string `envconfig:"ASSIGN_BACKUP_S3_REGION" required:"true"`
	Keep      int    `envconfig:"ASSIGN_BACKUP_KEEP" default:"7"`
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Config load error", zap.Error(err))
	}
	var bcfg BackupConfig
	if err := envconfig.Process("", &bcfg); err != nil {
		logger.Fatal("Backup config error", zap.Error(err))
	}

	ctx := context.Background()

	dump, err := dumpTables(cfg)
	if err != nil {
		logger.Fatal("pg_dump fehlgeschlagen", zap.Error(err))
	}

	client, err := storage.NewClient(ctx, storage.Settings{
		Endpoint:  bcfg.Endpoint,
		Region:    bcfg.Region,
		AccessKey: bcfg.AccessKey,
		SecretKey: bcfg.SecretKey,
	})
	if err != nil {
		logger.Fatal("S3 client creation failed", zap.Error(err))
	}

	key := backupKey(time.Now().UTC())
	if err := storage.Upload(ctx, client, bcfg.Bucket, key, dump); err != nil {
		logger.Fatal("Upload fehlgeschlagen", zap.Error(err))
	}
	logger.Info("Backup hochgeladen",
		zap.String("key", key),
		zap.Int("bytes", len(dump)))

	if err := pruneOld(ctx, client, bcfg.Bucket, bcfg.Keep, logger); err != nil {
		logger.Fatal("Rotation fehlgeschlagen", zap.Error(err))
	}
}

// dumpArgs baut die pg_dump-Argumente: nur die Dienst-Tabellen, Passwort
// über PGPASSWORD statt -W.
func dumpArgs(cfg *config.Config) []string {
	args := []string{
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w",
	}
	for _, t := range backupTables {
		args = append(args, "-t", t)
	}
	return args
}

// dumpTables führt pg_dump aus und gibt den gzip-komprimierten Dump
// zurück.
func dumpTables(cfg *config.Config) ([]byte, error) {
	cmd := exec.Command("pg_dump", dumpArgs(cfg)...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.DBPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := io.Copy(gz, stdout); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// backupKey erzeugt den Objektschlüssel für einen Backup-Zeitpunkt.
func backupKey(t time.Time) string {
	return fmt.Sprintf("backups/pc-assign-%s.sql.gz", t.Format("2006-01-02T15-04-05Z"))
}

// staleKeys liefert die Schlüssel jenseits des Aufbewahrungslimits,
// jüngste Objekte zuerst behalten.
func staleKeys(objs []types.Object, keep int) []string {
	if keep < 0 {
		keep = 0
	}
	if len(objs) <= keep {
		return nil
	}
	sorted := append([]types.Object{}, objs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LastModified.After(*sorted[j].LastModified)
	})

	var stale []string
	for _, obj := range sorted[keep:] {
		stale = append(stale, *obj.Key)
	}
	return stale
}

func pruneOld(ctx context.Context, client *s3.Client, bucket string, keep int, logger *zap.Logger) error {
	output, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: &bucket,
	})
	if err != nil {
		return err
	}

	stale := staleKeys(output.Contents, keep)
	if len(stale) == 0 {
		logger.Info("Keine Rotation nötig", zap.Int("keep", keep))
		return nil
	}

	for _, key := range stale {
		logger.Info("Lösche altes Backup", zap.String("key", key))
		k := key
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: &bucket,
			Key:    &k,
		}); err != nil {
			logger.Warn("Löschen fehlgeschlagen", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

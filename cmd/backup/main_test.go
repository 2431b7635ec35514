package main

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pc-assign/config"
)

func TestDumpArgs(t *testing.T) {
	cfg := &config.Config{
		DBHost: "db.internal",
		DBPort: 5433,
		DBUser: "assign",
		DBName: "assignments",
	}
	args := dumpArgs(cfg)

	assert.Contains(t, args, "-w")
	assert.Contains(t, args, "db.internal")
	assert.Contains(t, args, "5433")

	// jede Dienst-Tabelle wird explizit selektiert
	tables := map[string]bool{}
	for i, a := range args {
		if a == "-t" && i+1 < len(args) {
			tables[args[i+1]] = true
		}
	}
	for _, want := range backupTables {
		assert.True(t, tables[want], "tabelle %s fehlt", want)
	}
	assert.Len(t, tables, len(backupTables))
}

func TestBackupKey(t *testing.T) {
	ts := time.Date(2026, 8, 27, 3, 15, 0, 0, time.UTC)
	key := backupKey(ts)
	assert.Equal(t, "backups/pc-assign-2026-08-27T03-15-00Z.sql.gz", key)
}

func TestStaleKeys(t *testing.T) {
	mk := func(key string, age time.Duration) types.Object {
		ts := time.Now().Add(-age)
		return types.Object{Key: &key, LastModified: &ts}
	}
	objs := []types.Object{
		mk("backups/b-3", 3*time.Hour),
		mk("backups/b-1", 1*time.Hour),
		mk("backups/b-5", 5*time.Hour),
		mk("backups/b-2", 2*time.Hour),
		mk("backups/b-4", 4*time.Hour),
	}

	stale := staleKeys(objs, 3)
	require.Len(t, stale, 2)
	// die zwei ältesten fliegen raus
	assert.ElementsMatch(t, []string{"backups/b-4", "backups/b-5"}, stale)
}

func TestStaleKeysUnderLimit(t *testing.T) {
	key := "backups/only"
	ts := time.Now()
	objs := []types.Object{{Key: &key, LastModified: &ts}}

	assert.Nil(t, staleKeys(objs, 4))
	assert.Nil(t, staleKeys(nil, 4))
}

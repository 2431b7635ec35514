package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pc-assign/models"
)

func TestWriteAssignments(t *testing.T) {
	assignments := []models.Assignment{
		{PaperKey: "1", Email: "alice@example.org", Title: "Fast Paxos in Practice", Action: "primary"},
		{PaperKey: "2", Email: "bob@example.org", Title: "Cache, \"Coherence\", Revisited"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAssignments(&buf, assignments))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "paper,action,email,title", lines[0])
	assert.Equal(t, "1,primary,alice@example.org,Fast Paxos in Practice", lines[1])
	// leere Action fällt auf "primary" zurück; Titel mit Komma und
	// Anführungszeichen wird CSV-konform maskiert
	assert.Contains(t, lines[2], "2,primary,bob@example.org,")
}

func TestWriteAssignmentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAssignments(&buf, nil))
	assert.Equal(t, "paper,action,email,title\n", buf.String())
}

func TestReadAssignments(t *testing.T) {
	csv := "paper,action,email,title\n" +
		"1,primary,alice@example.org,T1\n" +
		"1,primary,bob@example.org,T1\n" +
		"2,secondary,alice@example.org,T2\n" +
		"2,primary,bob@example.org,T2\n"

	assigned, err := ReadAssignments(strings.NewReader(csv))
	require.NoError(t, err)

	assert.True(t, assigned["1"]["alice@example.org"])
	assert.True(t, assigned["1"]["bob@example.org"])
	assert.True(t, assigned["2"]["bob@example.org"])
	// nur "primary"-Zeilen zählen
	assert.False(t, assigned["2"]["alice@example.org"])
}

func TestReadAssignmentsMissingColumn(t *testing.T) {
	_, err := ReadAssignments(strings.NewReader("paper,email\n1,a@b.c\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action")
}

func TestWriteReadRoundTrip(t *testing.T) {
	assignments := []models.Assignment{
		{PaperKey: "7", Email: "carol@example.org", Title: "Gossip at Scale", Action: "primary"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteAssignments(&buf, assignments))

	assigned, err := ReadAssignments(&buf)
	require.NoError(t, err)
	assert.True(t, assigned["7"]["carol@example.org"])
}

package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
- id: q-a
  topic: slices
  options: 4
  priority: true
- id: q-b
  topic: maps
  options: 4
- id: q-c
  topic: slices
  options: 4
- id: q-d
  topic: maps
  options: 4
`

// setupFixtures writes a catalog file and returns global args pointing
// at it and a fresh database.
func setupFixtures(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()

	catPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catPath, []byte(testCatalog), 0o644))

	return []string{
		"--db", filepath.Join(dir, "drill.db"),
		"--catalog", catPath,
	}
}

// runCommand executes the CLI with the given args and returns stdout.
func runCommand(t *testing.T, globals []string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(append([]string{}, globals...), args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestStats_FreshDatabaseGolden(t *testing.T) {
	globals := setupFixtures(t)

	out, err := runCommand(t, globals, "stats")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "stats_fresh", []byte(out))
}

func TestStats_AfterAnswersGolden(t *testing.T) {
	globals := setupFixtures(t)

	_, err := runCommand(t, globals, "answer", "q-a", "correct")
	require.NoError(t, err)
	_, err = runCommand(t, globals, "answer", "q-b", "wrong")
	require.NoError(t, err)

	out, err := runCommand(t, globals, "stats")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "stats_after_answers", []byte(out))
}

func TestStats_JSON(t *testing.T) {
	globals := setupFixtures(t)

	out, err := runCommand(t, globals, "--format", "json", "stats")
	require.NoError(t, err)

	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.EqualValues(t, 4, snap["totalItems"])
}

func TestDue_ListsSessionQuestions(t *testing.T) {
	globals := setupFixtures(t)

	out, err := runCommand(t, globals, "due")
	require.NoError(t, err)
	assert.Contains(t, out, "4 questions due")
}

func TestAnswer_PromotesItem(t *testing.T) {
	globals := setupFixtures(t)

	out, err := runCommand(t, globals, "answer", "q-a", "correct")
	require.NoError(t, err)
	assert.Contains(t, out, "box 2")
}

func TestAnswer_RejectsBadVerdict(t *testing.T) {
	globals := setupFixtures(t)

	_, err := runCommand(t, globals, "answer", "q-a", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAnswer_UnknownItem(t *testing.T) {
	globals := setupFixtures(t)

	_, err := runCommand(t, globals, "answer", "nope", "correct")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestProgress_NeverAnswered(t *testing.T) {
	globals := setupFixtures(t)

	out, err := runCommand(t, globals, "progress", "q-a")
	require.NoError(t, err)
	assert.Contains(t, out, "never answered")
}

func TestSession_NewAndEnd(t *testing.T) {
	globals := setupFixtures(t)

	out, err := runCommand(t, globals, "session", "new")
	require.NoError(t, err)
	assert.Contains(t, out, "new session: 4 questions")

	_, err = runCommand(t, globals, "answer", "q-c", "correct")
	require.NoError(t, err)

	out, err = runCommand(t, globals, "session", "end")
	require.NoError(t, err)
	assert.Contains(t, out, "1 correct")
}

func TestReset_RequiresConfirmation(t *testing.T) {
	globals := setupFixtures(t)

	_, err := runCommand(t, globals, "reset")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReset_ClearsProgress(t *testing.T) {
	globals := setupFixtures(t)

	_, err := runCommand(t, globals, "answer", "q-a", "correct")
	require.NoError(t, err)

	_, err = runCommand(t, globals, "reset", "--yes")
	require.NoError(t, err)

	out, err := runCommand(t, globals, "progress", "q-a")
	require.NoError(t, err)
	assert.Contains(t, out, "never answered")
}

func TestRoot_RejectsInvalidFormat(t *testing.T) {
	globals := setupFixtures(t)

	_, err := runCommand(t, globals, "--format", "xml", "stats")
	require.Error(t, err)
}

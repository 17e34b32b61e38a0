package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

const fixture = `
nodes:
  - name: docs
    type: Folder
    children:
      - name: topic.dita
        content: "<topic id='t1'><title>Intro</title></topic>"
      - name: held.dita
        content: "<topic id='t2'/>"
        lockedBy: bob
      - name: notes.txt
        content: "plain text"
        mimeType: text/plain
`

func writeFixture(t *testing.T) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(name, []byte(fixture), 0o644))
	return name
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "memory")
	t.Setenv("STORAGE_URL", "memory://")
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedCommand(t *testing.T) {
	out, err := execute(t, "seed", writeFixture(t))
	require.NoError(t, err)
	assert.Contains(t, out, "/docs/topic.dita")
	assert.Contains(t, out, "/docs/held.dita")
}

func TestBrowseCommand(t *testing.T) {
	out, err := execute(t, "--seed", writeFixture(t), "browse", "/docs", "--types", "document")
	require.NoError(t, err)
	assert.Contains(t, out, "topic.dita")
	assert.Contains(t, out, "held.dita")
	assert.NotContains(t, out, "notes.txt")
	assert.Contains(t, out, "2 item(s)")
}

func TestGetCommand(t *testing.T) {
	out, err := execute(t, "--seed", writeFixture(t), "get", "/docs/topic.dita")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Intro</title>")

	_, err = execute(t, "--seed", writeFixture(t), "get", "/docs/notes.txt")
	assert.ErrorIs(t, err, editorbridge.ErrNotEditable)
}

func TestLockCommands(t *testing.T) {
	seed := writeFixture(t)

	out, err := execute(t, "--seed", seed, "-p", "alice", "lock", "/docs/topic.dita")
	require.NoError(t, err)
	assert.Contains(t, out, "acquired")

	out, err = execute(t, "--seed", seed, "-p", "alice", "lock", "/docs/held.dita")
	assert.ErrorIs(t, err, editorbridge.ErrLockUnavailable)
	assert.Contains(t, out, editorbridge.ReasonLockedByOther)

	out, err = execute(t, "--seed", seed, "-p", "bob", "unlock", "/docs/held.dita")
	require.NoError(t, err)
	assert.Contains(t, out, "available")
	assert.NotContains(t, out, "acquired")
}

func TestResolveCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.txt")
	out, err := execute(t, "--seed", writeFixture(t), "resolve", "/docs/notes.txt", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "mime-type: text/plain")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "plain text", string(data))

	_, err = execute(t, "--seed", writeFixture(t), "resolve", "/docs")
	assert.ErrorIs(t, err, editorbridge.ErrNoContent)
}

func TestScanCommand(t *testing.T) {
	out, err := execute(t, "--seed", writeFixture(t), "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "3 found, 3 ok, 0 failed in 2 folder(s)")

	out, err = execute(t, "--seed", writeFixture(t), "scan", "/docs", "--kinds", "picture")
	require.NoError(t, err)
	assert.Contains(t, out, "0 found")

	_, err = execute(t, "--seed", writeFixture(t), "scan", "--kinds", "spreadsheet")
	assert.ErrorIs(t, err, editorbridge.ErrInvalidRequest)
}

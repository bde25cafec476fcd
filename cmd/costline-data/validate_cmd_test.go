package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDump(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_ValidDump(t *testing.T) {
	path := writeDump(t, `{
	  "resources": ["DEV"],
	  "tasks": [
	    {"external_unique_id": 1, "outline_level": 1, "title": "Root"},
	    {"external_unique_id": 2, "parent_external_id": 1, "outline_level": 2, "title": "Leaf"}
	  ]
	}`)

	out, err := runCLI(t, "validate", "--input", path)
	require.NoError(t, err)
	require.Contains(t, out, "tasks: 2")
	require.Contains(t, out, "roots: 1")
	require.Contains(t, out, "result: valid")
}

func TestValidate_DuplicateIDFails(t *testing.T) {
	path := writeDump(t, `{"tasks": [
	  {"external_unique_id": 1, "outline_level": 1, "title": "A"},
	  {"external_unique_id": 1, "outline_level": 1, "title": "B"}
	]}`)

	out, err := runCLI(t, "validate", "--input", path)
	require.Error(t, err)
	require.Equal(t, exitValidation, exitCode(err))
	require.Contains(t, out, "duplicate_external_id")
}

func TestValidate_DroppedRecordsReported(t *testing.T) {
	path := writeDump(t, `{"tasks": [
	  {"external_unique_id": 1, "outline_level": 1, "title": "Root"},
	  {"external_unique_id": 2, "parent_external_id": 1, "outline_level": 2, "title": "Kept"},
	  {"external_unique_id": 3, "parent_external_id": 99, "outline_level": 2, "title": "Orphan"}
	]}`)

	out, err := runCLI(t, "validate", "--input", path, "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"dropped":1`)
	require.Contains(t, out, "unresolved_parent")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := runCLI(t, "validate", "--input", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	require.Equal(t, exitIO, exitCode(err))
}

func TestValidate_BadJSON(t *testing.T) {
	path := writeDump(t, "not json")
	_, err := runCLI(t, "validate", "--input", path)
	require.Error(t, err)
	require.Equal(t, exitValidation, exitCode(err))
}

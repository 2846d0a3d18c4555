package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/suggest"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "migrate", "import", "orphan", "match", "suggest", "link"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "basset", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestImportCommand_Flags(t *testing.T) {
	require.NotNil(t, importCmd.Flags().Lookup("project"))
	flag := importCmd.Flags().Lookup("replace")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestSuggestCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range suggestCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "accept", "dismiss"} {
		assert.True(t, names[name], "expected suggest subcommand %q", name)
	}
	assert.Equal(t, suggest.ActionLink, suggestAcceptCmd.Flags().Lookup("action").DefValue)
}

// execute runs the root command against a fresh sqlite database.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_ImportMatchSuggest(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BASSET_STORE_DRIVER", "sqlite")
	t.Setenv("BASSET_STORE_SQLITE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("BASSET_LOG_LEVEL", "error")

	lines := `{"id":"p1","entity_type":"person","fields":{"names":"John Smith","emails":"john.smith@example.com"}}
{"id":"p2","entity_type":"person","fields":{"names":"Jon Smith"}}
{"id":"p3","entity_type":"person","fields":{"names":"Jane Doe"}}
`
	file := filepath.Join(dir, "entities.jsonl")
	require.NoError(t, os.WriteFile(file, []byte(lines), 0644))

	_, err := execute(t, "migrate")
	require.NoError(t, err)

	_, err = execute(t, "import", file, "--project", "case-1")
	require.NoError(t, err)

	out, err := execute(t, "match", "--project", "case-1", "--kind", "email", "--value", "John.Smith@Example.com")
	require.NoError(t, err)
	var matches []rankedMatch
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "p1", matches[0].CandidateEntityID)
	assert.Equal(t, model.TierHigh, matches[0].Tier)

	out, err = execute(t, "suggest", "list", "p1")
	require.NoError(t, err)
	var set model.SuggestionSet
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	require.Len(t, set.High, 1)
	assert.Equal(t, "p2", set.High[0].Match.CandidateEntityID)

	_, err = execute(t, "suggest", "dismiss", "p1", set.High[0].ID, "--reason", "different people")
	require.NoError(t, err)

	out, err = execute(t, "suggest", "list", "p1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	assert.Zero(t, set.TotalCount)
}

func TestCLI_OrphanLink(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BASSET_STORE_DRIVER", "sqlite")
	t.Setenv("BASSET_STORE_SQLITE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("BASSET_LOG_LEVEL", "error")

	file := filepath.Join(dir, "entities.jsonl")
	require.NoError(t, os.WriteFile(file, []byte(`{"id":"p1","project":"case-1","entity_type":"person","fields":{"usernames":"ghost"}}`+"\n"), 0644))
	_, err := execute(t, "import", file)
	require.NoError(t, err)

	out, err := execute(t, "orphan", "add", "--project", "case-1", "--kind", "username", "--value", "@Ghost")
	require.NoError(t, err)
	var o model.OrphanData
	require.NoError(t, json.Unmarshal([]byte(out), &o))
	require.NotEmpty(t, o.ID)

	out, err = execute(t, "link", "orphan", o.ID, "p1", "--reason", "same handle")
	require.NoError(t, err)
	var e model.Entity
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, int64(2), e.Version)

	_, err = execute(t, "link", "orphan", o.ID, "p1", "--reason", "again")
	assert.Error(t, err, "already linked")
}

func TestOrphanInputFromFlags_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.bin")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0600))

	orphanKind, orphanValue, orphanFile, orphanSourceType = "hash", "", path, "human_entry"
	t.Cleanup(func() { orphanKind, orphanValue, orphanFile = "", "", "" })

	in, err := orphanInputFromFlags()
	require.NoError(t, err)
	assert.Equal(t, model.KindHash, in.Identifier.Kind)
	assert.Equal(t, path, in.Identifier.Value)
	assert.Equal(t, []byte("payload"), in.Identifier.Content)

	orphanKind = "fingerprint"
	_, err = orphanInputFromFlags()
	assert.Error(t, err)
}

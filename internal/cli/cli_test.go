package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser"
	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

const phraseList = "# medical\nwheel chair\nhi there\nsingle\n\nwheel chair\n"

func writePhrases(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phrases.txt")
	require.NoError(t, os.WriteFile(path, []byte(phraseList), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRewriteCmd(t *testing.T) {
	path := writePhrases(t)
	out, err := execute(t, "rewrite", "--phrases", path, "--replace-with", "Z", "wheel", "chair", "rental")
	require.NoError(t, err)
	assert.Contains(t, out, "wheelZchair rental\n")
	assert.Contains(t, out, `matched "wheel chair" at 0-11`)
}

func TestRewriteCmdJSON(t *testing.T) {
	path := writePhrases(t)
	out, err := execute(t, "rewrite", "--json", "--phrases", path, "--replace-with", "Z", "--ignore-case", "Hi There")
	require.NoError(t, err)

	var res autophrase.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "hiZthere", res.Query)
	assert.Equal(t, "Hi There", res.Original)
	assert.Len(t, res.Matches, 1)
}

func TestRewriteCmdRequiresPhrases(t *testing.T) {
	_, err := execute(t, "rewrite", "wheel", "chair")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phrases")
}

func TestRewriteCmdMissingFile(t *testing.T) {
	_, err := execute(t, "rewrite", "--phrases", filepath.Join(t.TempDir(), "nope.txt"), "x")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestParseCmd(t *testing.T) {
	path := writePhrases(t)
	out, err := execute(t, "parse", "--phrases", path, "--replace-with", "Z", "--param", "rows=7",
		"wheel", "chair", "NOT", "rental")
	require.NoError(t, err)

	var plan qparser.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, qparser.BooleanParserName, plan.Parser)
	assert.Equal(t, []string{"wheelzchair"}, plan.Terms)
	assert.Equal(t, []string{"rental"}, plan.ExcludeTerms)
	assert.Equal(t, 7, plan.Rows)
}

func TestParseCmdErrors(t *testing.T) {
	path := writePhrases(t)
	_, err := execute(t, "parse", "--phrases", path, "--def-type", "edismax", "x")
	assert.ErrorIs(t, err, apperrors.ErrUnknownParser)

	_, err = execute(t, "parse", "--phrases", path, "--param", "rows", "x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCheckCmd(t *testing.T) {
	path := writePhrases(t)
	out, err := execute(t, "check", "--json", path)
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Phrases)
	assert.Equal(t, 6, report.Stats.Lines)
	assert.Equal(t, 2, report.Stats.Kept)
	assert.Equal(t, 2, report.Stats.Comments)
	assert.Equal(t, 1, report.Stats.SingleWord)
	assert.Equal(t, 1, report.Stats.Duplicates)

	out, err = execute(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, ": 2 phrases")
	assert.Contains(t, out, "unmatchable: 0")
}

func TestCheckCmdReportsUnmatchable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrases.txt")
	require.NoError(t, os.WriteFile(path, []byte("wi-fi router\nat&t wireless\nwheel chair\n"), 0o644))

	out, err := execute(t, "check", "--json", path)
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Phrases)
	assert.Equal(t, 1, report.Stats.Kept)
	assert.Equal(t, 2, report.Stats.Unmatchable)
}

func TestImportSQLiteRoundTrip(t *testing.T) {
	path := writePhrases(t)
	db := filepath.Join(t.TempDir(), "phrases.db")
	dest := "sqlite:" + db + "#default"

	out, err := execute(t, "import", path, "--to", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 6 lines")

	out, err = execute(t, "rewrite", "--phrases", dest, "--replace-with", "Z", "hi", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "hiZthere\n")
}

func TestImportUnsupportedTarget(t *testing.T) {
	path := writePhrases(t)
	_, err := execute(t, "import", path, "--to", filepath.Join(t.TempDir(), "out.txt"))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestImportIgnoresServiceOnlySettings(t *testing.T) {
	path := writePhrases(t)
	cfgPath := filepath.Join(t.TempDir(), "autophrase.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sqlite:\n  busyTimeout: 1s\n"), 0o644))
	dest := "sqlite:" + filepath.Join(t.TempDir(), "phrases.db") + "#default"

	out, err := execute(t, "import", path, "--to", dest, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 6 lines")

	_, err = execute(t, "import", path, "--to", dest, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

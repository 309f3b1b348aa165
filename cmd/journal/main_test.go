package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/robertmeta/journal-cli/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	t.Setenv("JOURNAL_CONFIG", "")
	os.Unsetenv("JOURNAL_CONFIG")
	t.Setenv("JOURNAL_FILE", "")
	os.Unsetenv("JOURNAL_FILE")
	t.Setenv("JOURNAL_LOG_LEVEL", "")
	os.Unsetenv("JOURNAL_LOG_LEVEL")

	var out, errOut bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out, &errOut)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"journal"}, args...))
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	var coder cli.ExitCoder
	require.ErrorAs(t, err, &coder)
	return coder.ExitCode()
}

func decodeJSON(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestCLI_AddListSearchDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	r := run(t, "", "--file", path, "add", "--date", "2025-01-01", "--mood", "calm", "Quiet", "morning")
	require.NoError(t, r.err)
	added := decodeJSON(t, r.stdout)
	assert.Equal(t, true, added["success"])
	assert.Equal(t, float64(1), added["position"])

	r = run(t, "Read a book\nthen slept\n", "--file", path, "add", "--date", "2025-01-02")
	require.NoError(t, r.err)

	r = run(t, "", "--file", path, "add", "--date", "2025-01-01", "Evening walk")
	require.NoError(t, r.err)

	entries, err := codec.NewFile(path).Read()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Quiet morning", entries[0].Text)
	assert.Equal(t, "calm", entries[0].Mood)
	assert.Equal(t, "Read a book\nthen slept", entries[1].Text)
	assert.Equal(t, "unspecified", entries[1].Mood)
	assert.Equal(t, "No specific goal", entries[1].Goal)

	r = run(t, "", "--file", path, "list")
	require.NoError(t, r.err)
	listed := decodeJSON(t, r.stdout)
	assert.Equal(t, float64(3), listed["count"])
	list := listed["entries"].([]interface{})
	first := list[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["position"])
	assert.Equal(t, "2025-01-01", first["date"])

	r = run(t, "", "--file", path, "search", "2025-01-01")
	require.NoError(t, r.err)
	found := decodeJSON(t, r.stdout)
	assert.Equal(t, float64(2), found["count"])

	r = run(t, "", "--file", path, "delete", "2")
	require.NoError(t, r.err)
	deleted := decodeJSON(t, r.stdout)
	assert.Equal(t, true, deleted["success"])

	entries, err = codec.NewFile(path).Read()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Evening walk", entries[1].Text)
}

func TestCLI_DeleteCancelAndOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, run(t, "", "--file", path, "add", "only").err)

	r := run(t, "", "--file", path, "delete", "0")
	require.NoError(t, r.err)
	assert.Equal(t, true, decodeJSON(t, r.stdout)["cancelled"])

	r = run(t, "", "--file", path, "delete", "5")
	assert.Equal(t, ExitUsageError, exitCode(t, r.err))

	r = run(t, "", "--file", path, "delete", "abc")
	assert.Equal(t, ExitUsageError, exitCode(t, r.err))

	entries, err := codec.NewFile(path).Read()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCLI_UsageErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	tests := []struct {
		name string
		args []string
	}{
		{"search without date", []string{"search"}},
		{"search bad date", []string{"search", "01/02/2025"}},
		{"add bad date", []string{"add", "--date", "yesterday", "text"}},
		{"list bad since", []string{"list", "--since", "forever"}},
		{"delete without position", []string{"delete"}},
		{"import without file", []string{"import"}},
		{"import-feed without source", []string{"import-feed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, "", append([]string{"--file", path}, tt.args...)...)
			assert.Equal(t, ExitUsageError, exitCode(t, r.err))
		})
	}
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	r := run(t, "", "--file", path, "--log-level", "loud", "list")
	assert.Equal(t, ExitDataError, exitCode(t, r.err))
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "from-config.json")
	configPath := filepath.Join(dir, "journal.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("file: "+journalPath+"\n"), 0644))

	r := run(t, "", "--config", configPath, "add", "configured")
	require.NoError(t, r.err)

	entries, err := codec.NewFile(journalPath).Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "configured", entries[0].Text)
}

func TestCLI_CorruptFileWarnsOnStderr(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"list", []string{"list"}},
		{"search", []string{"search", "2025-01-01"}},
		{"add", []string{"add", "--date", "2025-01-01", "fresh start"}},
		{"delete", []string{"delete", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "journal.json")
			require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

			r := run(t, "", append([]string{"--file", path}, tt.args...)...)
			require.NoError(t, r.err)
			assert.Contains(t, r.stderr, "Warning: failed to read "+path)
			assert.Contains(t, r.stderr, "Starting with empty journal.")
			assert.NotContains(t, r.stdout, "Warning")
			decodeJSON(t, r.stdout)
		})
	}
}

func TestCLI_CorruptFileExportStaysXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	r := run(t, "", "--file", path, "export")
	require.NoError(t, r.err)
	assert.True(t, strings.HasPrefix(r.stdout, "<?xml"), r.stdout)
	assert.Contains(t, r.stderr, "Warning: failed to read "+path)
}

func TestCLI_CorruptFileWarnsInSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	r := run(t, "5\n", "--file", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Warning: failed to read "+path)
	assert.Contains(t, r.stdout, "Starting with empty journal.")
}

func TestCLI_ExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.json")
	target := filepath.Join(dir, "target.db")
	exported := filepath.Join(dir, "journal.opml")

	require.NoError(t, run(t, "", "--file", source, "add", "--date", "2025-04-01", "--mood", "glad", "Spring").err)
	require.NoError(t, run(t, "", "--file", source, "add", "--date", "2025-04-02", "Rain").err)

	r := run(t, "", "--file", source, "export", "--output", exported)
	require.NoError(t, r.err)
	assert.Equal(t, float64(2), decodeJSON(t, r.stdout)["count"])

	r = run(t, "", "--file", target, "import", exported)
	require.NoError(t, r.err)
	assert.Equal(t, float64(2), decodeJSON(t, r.stdout)["imported"])

	want, err := codec.NewFile(source).Read()
	require.NoError(t, err)

	c, err := codec.NewSQLite(target)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, want, c.Load())
}

func TestCLI_ExportToStdout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, run(t, "", "--file", path, "add", "--date", "2025-04-01", "Hello").err)

	r := run(t, "", "--file", path, "export")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, `<opml version="2.0">`)
	assert.Contains(t, r.stdout, `text="Hello"`)
}

func TestCLI_ImportFeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.zst")

	r := run(t, "", "--file", path, "import-feed", "../../testdata/rss2.xml")
	require.NoError(t, r.err)
	assert.Equal(t, float64(3), decodeJSON(t, r.stdout)["imported"])

	c, err := codec.NewCompressedFile(path)
	require.NoError(t, err)
	defer c.Close()

	entries, err := c.Read()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2025-01-01", entries[0].Date)
}

func TestCLI_InteractiveSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	r := run(t, "1\n2025-06-01\nfocused\nFinish draft\nWrote the intro.\nEND\n2\n5\n", "--file", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Saved.")
	assert.Contains(t, r.stdout, "Total entries: 1")
	assert.Contains(t, r.stdout, "Thanks for journaling today.")

	entries, err := codec.NewFile(path).Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Finish draft", entries[0].Goal)
}

func TestCLI_UnknownCommand(t *testing.T) {
	r := run(t, "", "--file", filepath.Join(t.TempDir(), "journal.json"), "frobnicate")
	assert.Equal(t, ExitUsageError, exitCode(t, r.err))
}

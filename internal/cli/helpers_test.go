package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cropper/internal/testutil"
)

// testEnv is an isolated config, store and output directory.
type testEnv struct {
	dir    string
	config string
	out    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		out:    filepath.Join(dir, "out"),
	}
	env.writeConfig(t, "")
	return env
}

// writeConfig writes the base test config followed by extra YAML.
func (e *testEnv) writeConfig(t *testing.T, extra string) {
	t.Helper()
	base := "store:\n" +
		"  backend: sqlite\n" +
		"  path: " + filepath.Join(e.dir, "sessions.db") + "\n" +
		"log_level: error\n"
	if extra != "" {
		base = extra + base
	}
	require.NoError(t, os.WriteFile(e.config, []byte(base), 0644))
}

// image writes a w×h split PNG and returns its path.
func (e *testEnv) image(t *testing.T, name string, w, h int) string {
	t.Helper()
	return testutil.WritePNG(t, e.dir, name, testutil.SplitImage(w, h))
}

// run executes the root command with the test config and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))

	err := cmd.Execute()
	return out.String(), err
}

// runJSON runs with --format json, requires success and decodes stdout.
func (e *testEnv) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := e.run(t, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err, "output: %s", out)
	require.NoError(t, json.Unmarshal([]byte(out), v), "output: %s", out)
}

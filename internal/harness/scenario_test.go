package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cropper/internal/geometry"
)

var defaultLimitsWithMax = geometry.Limits{MinScale: 0.5, MaxScale: 10, EnforceCover: true}

const validScenario = `
name: ok
description: "minimal"
image: { width: 10, height: 10 }
file_id: a
viewport_width: 30
steps:
  - kind: reset
`

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Name)
	assert.Equal(t, 10, s.Image.Width)
	assert.Equal(t, "reset", s.Steps[0].Kind)
	assert.Nil(t, s.Saved)
}

func TestParseScenario_Saved(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario + "saved: { scale: 2, translate_x: 3, translate_y: -4 }\n"))
	require.NoError(t, err)
	require.NotNil(t, s.Saved)
	assert.Equal(t, 2.0, s.Saved.Scale)
	assert.Equal(t, 3.0, s.Saved.TranslateX)
	assert.Equal(t, -4.0, s.Saved.TranslateY)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "stepz: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "description: d\nimage: {width: 1, height: 1}\nfile_id: a\nviewport_width: 1\nsteps: [{kind: reset}]", "name is required"},
		{"no description", "name: n\nimage: {width: 1, height: 1}\nfile_id: a\nviewport_width: 1\nsteps: [{kind: reset}]", "description is required"},
		{"no file id", "name: n\ndescription: d\nimage: {width: 1, height: 1}\nviewport_width: 1\nsteps: [{kind: reset}]", "file_id is required"},
		{"no viewport", "name: n\ndescription: d\nimage: {width: 1, height: 1}\nfile_id: a\nsteps: [{kind: reset}]", "viewport_width must be positive"},
		{"no image", "name: n\ndescription: d\nfile_id: a\nviewport_width: 1\nsteps: [{kind: reset}]", "image width and height"},
		{"no steps", "name: n\ndescription: d\nimage: {width: 1, height: 1}\nfile_id: a\nviewport_width: 1", "steps list is required"},
		{"bad kind", "name: n\ndescription: d\nimage: {width: 1, height: 1}\nfile_id: a\nviewport_width: 1\nsteps: [{kind: swipe}]", `unknown step kind "swipe"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_EmptyDir(t *testing.T) {
	_, err := LoadScenarios(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files")
}

func TestLoadScenarios_NamesBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(validScenario), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("name: [broken"), 0644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.yaml")
}

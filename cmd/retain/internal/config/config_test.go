package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/retain/pkg/core"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadOptional_Missing(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoadOptional_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "tree: [unterminated")

	_, err := LoadOptional(dir)
	assert.ErrorContains(t, err, "failed to parse retain.yaml")
}

func TestResolve_Defaults(t *testing.T) {
	dir := t.TempDir()

	r, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, r.Root)
	assert.Empty(t, r.ModulePath)
	assert.Equal(t, filepath.Base(dir), r.Project)
	assert.Equal(t, core.ResetOnRebuild, r.Policy)
	assert.True(t, r.Debug)
	assert.Equal(t, slog.LevelInfo, r.LogLevel)
	assert.False(t, r.Verbose)
}

func TestResolve_FromFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/widgets/gallery/v2\n\ngo 1.24\n")
	writeFile(t, dir, FileName, `
tree:
  dependency_policy: accumulate
  debug: false
log:
  level: debug
  verbose: true
`)

	r, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/widgets/gallery/v2", r.ModulePath)
	assert.Equal(t, "gallery", r.Project)
	assert.Equal(t, core.Accumulate, r.Policy)
	assert.False(t, r.Debug)
	assert.Equal(t, slog.LevelDebug, r.LogLevel)
	assert.True(t, r.Verbose)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "unknown policy",
			files: map[string]string{FileName: "tree:\n  dependency_policy: sometimes\n"},
			want:  "tree.dependency_policy",
		},
		{
			name:  "unknown level",
			files: map[string]string{FileName: "log:\n  level: loud\n"},
			want:  "log.level",
		},
		{
			name:  "go.mod without module",
			files: map[string]string{"go.mod": "go 1.24\n"},
			want:  "could not determine module path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}
			_, err := Resolve(dir)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestResolved_ConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "tree:\n  dependency_policy: accumulate\nlog:\n  level: warn\n")

	r, err := Resolve(dir)
	require.NoError(t, err)

	data, err := yaml.Marshal(r.Config())
	require.NoError(t, err)
	writeFile(t, dir, FileName, string(data))

	again, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/app\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	got, err := FindProjectRoot()
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	got, err = filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

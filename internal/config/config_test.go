package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "name", cfg.Naming)
	assert.Equal(t, "rpack", cfg.Codec)
	assert.True(t, cfg.Zip)
	assert.True(t, cfg.ExportMetadata)
	assert.False(t, cfg.Report)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_Formats verifies the same settings in every supported format.
func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"config.jsonc", `{
			// comments are allowed
			"naming": "numbered",
			"codec": "zstd",
			"zip": false,
			"workers": 4,
		}`},
		{"config.json", `{"naming":"numbered","codec":"zstd","zip":false,"workers":4}`},
		{"config.yaml", "naming: numbered\ncodec: zstd\nzip: false\nworkers: 4\n"},
		{"config.toml", "naming = \"numbered\"\ncodec = \"zstd\"\nzip = false\nworkers = 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			p := writeConfig(t, t.TempDir(), tt.file, tt.content)

			cfg, err := Load(p)
			require.NoError(t, err)
			assert.Equal(t, "numbered", cfg.Naming)
			assert.Equal(t, "zstd", cfg.Codec)
			assert.False(t, cfg.Zip)
			assert.Equal(t, 4, cfg.Workers)
			assert.True(t, cfg.ExportMetadata, "unset fields keep their defaults")
		})
	}
}

func TestLoad_RelativeRPackMap(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "config.yaml", "rpack_map: tables/map.bin\n")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tables", "map.bin"), cfg.RPackMap)
}

func TestLoad_EmptyYAML(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "config.yml", "\n")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestLoad_Errors verifies that every failure carries ExitConfigError.
func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "nope.json")},
		{"bad json", writeConfig(t, dir, "bad.json", "{naming:")},
		{"bad toml", writeConfig(t, dir, "bad.toml", "naming = ")},
		{"invalid naming", writeConfig(t, dir, "naming.yaml", "naming: alphabetical\n")},
		{"invalid codec", writeConfig(t, dir, "codec.yaml", "codec: lz4\n")},
		{"negative workers", writeConfig(t, dir, "workers.yaml", "workers: -1\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)

			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitConfigError, cliErr.Code)
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()

	p, err := Find(dir)
	require.NoError(t, err)
	assert.Empty(t, p)

	writeConfig(t, dir, "config.toml", "")
	writeConfig(t, dir, "config.yaml", "")

	p, err = Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), p, "yaml is probed before toml")
}

func TestResolve(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cfg, path, err := Resolve("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)

	appDir := filepath.Join(xdg, AppName)
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	want := writeConfig(t, appDir, "config.json", `{"report": true}`)

	cfg, path, err = Resolve("")
	require.NoError(t, err)
	assert.Equal(t, want, path)
	assert.True(t, cfg.Report)

	explicit := writeConfig(t, t.TempDir(), "custom.toml", "report = false\nnaming = \"numbered\"\n")
	cfg, path, err = Resolve(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, path)
	assert.Equal(t, "numbered", cfg.Naming)
}

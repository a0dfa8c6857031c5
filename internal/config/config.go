// Package config loads the optional risu-extract configuration file.
//
// The file may be JSONC, YAML or TOML; the format is chosen by extension.
// Every field is optional: values missing from the file keep their
// defaults, and command-line flags override both.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/rpack"
)

// AppName is the directory name used under the user config directory.
const AppName = "risu-extract"

// FileNames are probed, in order, by Find.
var FileNames = []string{"config.jsonc", "config.json", "config.yaml", "config.yml", "config.toml"}

// Config holds user preferences for extraction.
type Config struct {
	// Naming is "name" or "numbered".
	Naming string `json:"naming" yaml:"naming" toml:"naming"`

	// Codec decompresses module containers: rpack, zstd, gzip or none.
	Codec string `json:"codec" yaml:"codec" toml:"codec"`

	// RPackMap is the path to the 256-byte rpack substitution table.
	// A relative path is resolved against the config file's directory.
	RPackMap string `json:"rpack_map" yaml:"rpack_map" toml:"rpack_map"`

	// OutputDir receives all outputs.
	OutputDir string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`

	// Zip packs assets into one archive per input instead of a directory.
	Zip bool `json:"zip" yaml:"zip" toml:"zip"`

	// ExportMetadata writes the metadata/structure JSON next to the assets.
	ExportMetadata bool `json:"export_metadata" yaml:"export_metadata" toml:"export_metadata"`

	// Report writes a YAML run report per input.
	Report bool `json:"report" yaml:"report" toml:"report"`

	// ExtendedSniff infers extensions beyond png/jpg/gif/webp.
	ExtendedSniff bool `json:"extended_sniff" yaml:"extended_sniff" toml:"extended_sniff"`

	// Workers bounds parallel decoding; 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers" toml:"workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Naming:         string(model.NamingByName),
		Codec:          rpack.NameRPack,
		OutputDir:      ".",
		Zip:            true,
		ExportMetadata: true,
	}
}

// Load reads the config file at path on top of the defaults.
//
// Returns a CLIError with ExitConfigError when the file cannot be read,
// parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read config file: %s", path), err)
	}

	cfg := Default()
	if err := decode(path, data, cfg); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to parse config file: %s", path), err)
	}

	if cfg.RPackMap != "" && !filepath.IsAbs(cfg.RPackMap) {
		cfg.RPackMap = filepath.Join(filepath.Dir(path), cfg.RPackMap)
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid config file: %s", path), err)
	}
	return cfg, nil
}

// decode unmarshals data into cfg according to the file extension.
// Unknown extensions are treated as JSONC.
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		// Comments and trailing commas are allowed in JSON config files.
		return json.Unmarshal(jsonc.ToJSON(data), cfg)
	}
}

// Validate checks enum fields and numeric ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, err := model.ParseNamingMode(c.Naming); err != nil {
		errs = append(errs, err)
	}
	if !validCodec(c.Codec) {
		errs = append(errs, fmt.Errorf("invalid codec: %q (valid: %s)", c.Codec, strings.Join(rpack.Names(), ", ")))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

func validCodec(name string) bool {
	for _, n := range rpack.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Dir returns the config directory: $XDG_CONFIG_HOME/risu-extract, or
// ~/.config/risu-extract when XDG_CONFIG_HOME is unset.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// Find returns the first existing config file in dir, or "" when none
// exists.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to check config file %s: %w", p, err)
		}
	}
	return "", nil
}

// Resolve loads the config at explicitPath when set, otherwise the first
// file found in Dir(). With no file at all it returns Default().
// The second return value is the path that was loaded, or "".
func Resolve(explicitPath string) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := Load(explicitPath)
		return cfg, explicitPath, err
	}

	dir, err := Dir()
	if err != nil {
		return Default(), "", nil
	}
	path, err := Find(dir)
	if err != nil {
		return nil, "", model.WrapCLIError(model.ExitConfigError, "failed to locate config file", err)
	}
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

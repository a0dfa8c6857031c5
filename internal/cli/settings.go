package cli

import (
	"fmt"
	"sync"

	"github.com/shinji-kodama/risu-extract/internal/config"
	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/rpack"
)

// extractFlags holds the flag values shared by the extract and watch
// commands.
type extractFlags struct {
	out           string
	naming        string
	zip           bool
	noZip         bool
	kind          string
	codec         string
	rpackMap      string
	noMetadata    bool
	report        bool
	extendedSniff bool
	workers       int
}

// settings is the effective configuration of a command after merging
// defaults, the config file and flags (in increasing precedence).
type settings struct {
	outputDir      string
	naming         model.NamingMode
	zip            bool
	exportMetadata bool
	report         bool
	extendedSniff  bool
	workers        int
	kind           model.ContainerKind
	codec          string
	rpackMap       string
}

// mergeSettings applies the flags that were explicitly set on top of cfg.
// changed reports whether a flag was given on the command line.
func mergeSettings(cfg *config.Config, f *extractFlags, changed func(name string) bool) (*settings, error) {
	s := &settings{
		outputDir:      cfg.OutputDir,
		zip:            cfg.Zip,
		exportMetadata: cfg.ExportMetadata,
		report:         cfg.Report,
		extendedSniff:  cfg.ExtendedSniff,
		workers:        cfg.Workers,
		codec:          cfg.Codec,
		rpackMap:       cfg.RPackMap,
	}
	namingValue := cfg.Naming

	if changed("out") {
		s.outputDir = f.out
	}
	if changed("naming") {
		namingValue = f.naming
	}
	if changed("zip") {
		s.zip = f.zip
	}
	if changed("no-zip") && f.noZip {
		s.zip = false
	}
	if changed("no-metadata") && f.noMetadata {
		s.exportMetadata = false
	}
	if changed("report") {
		s.report = f.report
	}
	if changed("extended-sniff") {
		s.extendedSniff = f.extendedSniff
	}
	if changed("workers") {
		s.workers = f.workers
	}
	if changed("codec") {
		s.codec = f.codec
	}
	if changed("rpack-map") {
		s.rpackMap = f.rpackMap
	}

	mode, err := model.ParseNamingMode(namingValue)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "invalid --naming value", err)
	}
	s.naming = mode

	if f.kind != "" {
		kind, err := model.ParseContainerKind(f.kind)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError, "invalid --kind value", err)
		}
		s.kind = kind
	}
	if s.workers < 0 {
		return nil, model.NewCLIError(model.ExitConfigError, fmt.Sprintf("--workers must be >= 0, got %d", s.workers))
	}
	return s, nil
}

// loadSettings resolves the config file named by --config (or discovered
// in the user config directory) and merges flags into it.
func loadSettings(f *extractFlags, changed func(name string) bool) (*settings, error) {
	cfg, path, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		VerboseLog("Loaded config from %s", path)
	}
	return mergeSettings(cfg, f, changed)
}

// codecCache opens the module codec on first use, so card-only runs never
// need an rpack table.
type codecCache struct {
	name    string
	mapPath string

	once  sync.Once
	codec rpack.Codec
	err   error
}

func newCodecCache(s *settings) *codecCache {
	return &codecCache{name: s.codec, mapPath: s.rpackMap}
}

func (c *codecCache) get() (rpack.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = rpack.New(c.name, c.mapPath)
		if c.err != nil {
			c.err = model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("cannot open %s codec", c.name), c.err)
		}
	})
	return c.codec, c.err
}

// Close releases codec resources (zstd keeps goroutines alive).
func (c *codecCache) Close() {
	if closer, ok := c.codec.(interface{ Close() }); ok {
		closer.Close()
	}
}

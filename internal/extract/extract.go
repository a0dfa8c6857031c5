// Package extract runs one extraction: classify the input, parse it with
// the matching container parser, and resolve descriptors against
// payloads into uniquely named assets.
//
// Every call to Run owns its own state (logger, run ID, name set), so
// concurrent runs never interfere.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/shinji-kodama/risu-extract/internal/card"
	"github.com/shinji-kodama/risu-extract/internal/manifest"
	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/module"
	"github.com/shinji-kodama/risu-extract/internal/naming"
	"github.com/shinji-kodama/risu-extract/internal/rpack"
	"github.com/shinji-kodama/risu-extract/internal/sniff"
)

// ModuleExt is the file extension that selects the module parser when no
// kind is forced.
const ModuleExt = ".risum"

// Options configure a single run.
type Options struct {
	// Kind forces a container kind. Empty means detect.
	Kind model.ContainerKind

	// SourceName is the input's file name. Only its extension is used, to
	// recognize module containers.
	SourceName string

	// Naming selects the output filename scheme.
	Naming model.NamingMode

	// Decompressor unpacks module containers. Only required for modules.
	Decompressor rpack.Decompressor

	// ExtendedSniff widens extension inference for payloads without a hint.
	ExtendedSniff bool

	// Workers bounds parallel payload decoding (0 = GOMAXPROCS).
	Workers int

	// Logger is the parent logger. The run adds its own attributes.
	Logger *slog.Logger
}

// Result is everything one run produced.
type Result struct {
	RunID string
	Kind  model.ContainerKind

	// Metadata is the card metadata or the module manifest.
	Metadata *model.MetadataDocument

	Descriptors []model.AssetDescriptor
	Assets      []model.ResolvedAsset

	// Renamed counts assets that received a collision suffix.
	Renamed int

	// Declared is the advisory asset count from the metadata. For modules
	// it is len(module.assets) and Found is the number of records read.
	Declared int
	Found    int

	// ModuleName is module.name for module containers.
	ModuleName string
}

// Empty reports whether the run found neither assets nor metadata.
func (r *Result) Empty() bool {
	return len(r.Descriptors) == 0 && len(r.Assets) == 0 && r.Metadata.IsAbsent()
}

// runContext is the per-run state threaded through the pipeline.
type runContext struct {
	id   string
	log  *slog.Logger
	opts Options
}

func newRunContext(opts Options) *runContext {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &runContext{
		id:   id,
		log:  log.With("run", id),
		opts: opts,
	}
}

// ResolveKind returns the container kind for data: the forced kind if
// set, module for a .risum source name, otherwise the sniffed kind.
func ResolveKind(data []byte, forced model.ContainerKind, sourceName string) (model.ContainerKind, error) {
	if forced != "" {
		if !forced.IsValid() {
			return "", fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, forced)
		}
		return forced, nil
	}
	if strings.EqualFold(filepath.Ext(sourceName), ModuleExt) {
		return model.KindModule, nil
	}
	return sniff.Detect(data)
}

// Run executes one extraction over data.
func Run(ctx context.Context, data []byte, opts Options) (*Result, error) {
	rc := newRunContext(opts)

	kind, err := ResolveKind(data, opts.Kind, opts.SourceName)
	if err != nil {
		return nil, err
	}
	rc.log = rc.log.With("kind", kind.String())
	rc.log.Debug("starting extraction", "bytes", len(data), "source", opts.SourceName)

	res := &Result{RunID: rc.id, Kind: kind}

	var (
		payloads map[int][]byte
		bound    [][]byte
	)
	switch kind {
	case model.KindImage, model.KindArchive:
		parse := card.ParseImage
		if kind == model.KindArchive {
			parse = card.ParseArchive
		}
		parsed, err := parse(ctx, data, card.Options{Logger: rc.log, Workers: opts.Workers})
		if err != nil {
			return nil, err
		}
		res.Metadata = parsed.Metadata
		res.Descriptors = parsed.Descriptors
		res.Declared = manifest.DeclaredAssetCount(parsed.Metadata)
		payloads = parsed.Payloads
		bound = parsed.Bound
	case model.KindModule:
		if opts.Decompressor == nil {
			return nil, fmt.Errorf("no codec configured for module containers")
		}
		parsed, err := module.Parse(ctx, data, module.Options{Decompressor: opts.Decompressor, Logger: rc.log})
		if err != nil {
			return nil, err
		}
		res.Metadata = parsed.Manifest
		res.Descriptors = parsed.Descriptors
		res.Declared = parsed.Declared
		res.Found = parsed.Found
		res.ModuleName = parsed.Name
		payloads = parsed.Payloads
	}

	namingOpts := naming.Options{Mode: opts.Naming, ExtendedSniff: opts.ExtendedSniff}
	var resolved naming.Result
	if kind == model.KindArchive {
		resolved = naming.CorrelateBound(res.Descriptors, bound, namingOpts)
	} else {
		resolved = naming.Correlate(res.Descriptors, payloads, namingOpts)
	}
	res.Assets = resolved.Assets
	res.Renamed = resolved.Renamed
	if kind != model.KindModule {
		res.Found = len(res.Assets)
	}

	rc.log.Debug("extraction finished",
		"descriptors", len(res.Descriptors),
		"assets", len(res.Assets),
		"unmatched", resolved.Unmatched,
		"renamed", res.Renamed)
	return res, nil
}

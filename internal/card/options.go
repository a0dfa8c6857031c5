package card

import (
	"log/slog"
	"runtime"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// Options control card parsing.
type Options struct {
	// Logger receives per-item warnings (skipped chunks, missing entries).
	// Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`

	// Workers bounds parallel decoding. Zero means GOMAXPROCS.
	Workers int
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

// Result is the outcome of parsing one card container.
type Result struct {
	Metadata    *model.MetadataDocument
	Descriptors []model.AssetDescriptor

	// Payloads holds image asset chunks keyed by index.
	Payloads map[int][]byte

	// Bound holds archive entry bytes: Bound[i] was read for
	// Descriptors[i]. Nil for image containers.
	Bound [][]byte
}

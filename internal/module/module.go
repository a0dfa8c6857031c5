package module

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/shinji-kodama/risu-extract/internal/manifest"
	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/rpack"
)

const (
	// Magic is the first byte of every module container ("o").
	Magic byte = 0x6F

	// Version is the only supported container version.
	Version byte = 0x00

	markerEnd   byte = 0x00
	markerAsset byte = 0x01
)

// Options control Parse.
type Options struct {
	// Decompressor unpacks the manifest and every asset record. Required.
	Decompressor rpack.Decompressor

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is the outcome of parsing a module container.
type Result struct {
	// Name is module.name from the manifest, or "" when absent.
	Name string

	// Manifest is the whole decoded manifest document.
	Manifest *model.MetadataDocument

	// Descriptors has one entry per module.assets element, in order.
	Descriptors []model.AssetDescriptor

	// Payloads holds the decoded asset records keyed by record position.
	Payloads map[int][]byte

	// Declared is len(module.assets); Found is how many records were read.
	Declared int
	Found    int
}

// Partial reports whether the stream ended before every declared asset
// was found.
func (r *Result) Partial() bool {
	return r.Found < r.Declared
}

// Parse reads a module container.
//
// Fatal errors: model.ErrBadMagic, model.ErrUnsupportedVersion,
// model.ErrMalformedContainer (truncated header or manifest),
// model.ErrMalformedManifest and model.ErrCorruptPayload (a manifest or
// record that fails to decompress). Running out of records before the
// declared count is not an error; Result.Found reports how many were read.
func Parse(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if opts.Decompressor == nil {
		return nil, fmt.Errorf("module: no decompressor configured")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &scanner{buf: data}
	if err := s.header(); err != nil {
		return nil, err
	}

	packed, ok := s.block()
	if !ok {
		return nil, fmt.Errorf("%w: manifest length exceeds file size", model.ErrMalformedContainer)
	}
	tree, err := decodeManifest(packed, opts.Decompressor)
	if err != nil {
		return nil, err
	}

	info, ok := tree["module"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: manifest has no module object", model.ErrMalformedManifest)
	}
	assets, _ := info["assets"].([]any)
	name, _ := info["name"].(string)

	res := &Result{
		Name:        name,
		Manifest:    model.StructuredMetadata(tree),
		Descriptors: manifest.NormalizeModule(assets),
		Payloads:    make(map[int][]byte, len(assets)),
		Declared:    len(assets),
	}

	for res.Found < res.Declared {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		packed, status := s.next()
		if status != recordOK {
			log.Debug("record scan stopped", "reason", status.String(), "offset", s.pos)
			break
		}
		payload, err := opts.Decompressor.Decompress(packed)
		if err != nil {
			return nil, fmt.Errorf("asset record %d: %w", res.Found, err)
		}
		res.Payloads[res.Found] = payload
		res.Found++
	}

	if res.Partial() {
		log.Warn("module stream ended early", "found", res.Found, "declared", res.Declared)
	}
	return res, nil
}

func decodeManifest(packed []byte, dec rpack.Decompressor) (map[string]any, error) {
	raw, err := dec.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: manifest is not valid UTF-8", model.ErrMalformedManifest)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedManifest, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: manifest is not a JSON object", model.ErrMalformedManifest)
	}
	return tree, nil
}

// recordStatus is the outcome of one scanner.next call.
type recordStatus int

const (
	recordOK recordStatus = iota
	recordEnd
	recordEOF
	recordTruncated
)

func (s recordStatus) String() string {
	switch s {
	case recordOK:
		return "ok"
	case recordEnd:
		return "end marker"
	case recordEOF:
		return "end of buffer"
	case recordTruncated:
		return "truncated record"
	default:
		return "unknown"
	}
}

// scanner walks the container with explicit bounds checks. It never
// slices past the end of buf.
type scanner struct {
	buf []byte
	pos int
}

func (s *scanner) remaining() int {
	return len(s.buf) - s.pos
}

func (s *scanner) header() error {
	if s.remaining() < 1 || s.buf[0] != Magic {
		return fmt.Errorf("%w: not a module container", model.ErrBadMagic)
	}
	if s.remaining() < 2 {
		return fmt.Errorf("%w: truncated header", model.ErrMalformedContainer)
	}
	if s.buf[1] != Version {
		return fmt.Errorf("%w: %d", model.ErrUnsupportedVersion, s.buf[1])
	}
	s.pos = 2
	return nil
}

// block reads a uint32le length followed by that many bytes.
func (s *scanner) block() ([]byte, bool) {
	if s.remaining() < 4 {
		return nil, false
	}
	n := binary.LittleEndian.Uint32(s.buf[s.pos:])
	if uint64(n) > uint64(s.remaining()-4) {
		return nil, false
	}
	s.pos += 4
	b := s.buf[s.pos : s.pos+int(n)]
	s.pos += int(n)
	return b, true
}

// next returns the packed bytes of the next asset record, skipping
// unknown marker bytes.
func (s *scanner) next() ([]byte, recordStatus) {
	for s.remaining() > 0 {
		marker := s.buf[s.pos]
		s.pos++
		switch marker {
		case markerEnd:
			return nil, recordEnd
		case markerAsset:
			b, ok := s.block()
			if !ok {
				return nil, recordTruncated
			}
			return b, recordOK
		}
	}
	return nil, recordEOF
}

// Asset is one record for Encode.
type Asset struct {
	ID   string
	Type string
	Data []byte
}

// Encode builds a module container named name holding assets, in order.
// extra is merged into the module object of the manifest (it may be nil).
// It is the inverse of Parse and is used to build fixtures and repack
// extracted modules.
func Encode(name string, assets []Asset, extra map[string]any, comp rpack.Compressor) ([]byte, error) {
	info := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		info[k] = v
	}
	info["name"] = name
	list := make([]any, len(assets))
	for i, a := range assets {
		list[i] = []any{a.ID, "", a.Type}
	}
	info["assets"] = list

	raw, err := json.Marshal(map[string]any{"type": "risuModule", "module": info})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	return EncodeRaw(raw, assets, comp)
}

// EncodeRaw builds a module container from an already-serialized
// manifest. The manifest is not validated.
func EncodeRaw(manifestJSON []byte, assets []Asset, comp rpack.Compressor) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(Magic)
	buf.WriteByte(Version)

	packed, err := comp.Compress(manifestJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to pack manifest: %w", err)
	}
	writeBlock(&buf, packed)

	for i, a := range assets {
		packed, err := comp.Compress(a.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to pack asset %d: %w", i, err)
		}
		buf.WriteByte(markerAsset)
		writeBlock(&buf, packed)
	}
	buf.WriteByte(markerEnd)
	return buf.Bytes(), nil
}

func writeBlock(buf *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

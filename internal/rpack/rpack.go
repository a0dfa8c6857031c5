// Package rpack provides the payload codecs used by module containers.
//
// Module files compress their manifest and every asset record with the
// "rpack" scheme, a fixed 256-entry byte substitution table. The table
// itself is distributed with the authoring tool, so it is loaded from a
// file at runtime rather than compiled in. Other codecs (zstd, gzip,
// none) are provided for repacked or test containers and share the same
// interface.
package rpack

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// Decompressor turns a packed payload back into its original bytes.
// Implementations must wrap failures with model.ErrCorruptPayload.
type Decompressor interface {
	Decompress(src []byte) ([]byte, error)
}

// Compressor is the inverse of Decompressor.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
}

// Codec is a named, symmetric Decompressor/Compressor.
type Codec interface {
	Decompressor
	Compressor
	Name() string
}

// Codec names accepted by New.
const (
	NameRPack = "rpack"
	NameZstd  = "zstd"
	NameGzip  = "gzip"
	NameNone  = "none"
)

// Names lists the codec names accepted by New, sorted.
func Names() []string {
	names := []string{NameRPack, NameZstd, NameGzip, NameNone}
	sort.Strings(names)
	return names
}

// New returns the codec registered under name. mapPath is only used by
// the rpack codec and must point at its 256-byte substitution table.
func New(name, mapPath string) (Codec, error) {
	switch name {
	case NameRPack:
		if mapPath == "" {
			return nil, fmt.Errorf("rpack codec requires a substitution table (set rpack_map or --rpack-map)")
		}
		t, err := LoadTable(mapPath)
		if err != nil {
			return nil, err
		}
		return t, nil
	case NameZstd:
		z, err := NewZstd()
		if err != nil {
			return nil, err
		}
		return z, nil
	case NameGzip:
		return Gzip{}, nil
	case NameNone:
		return Identity{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (valid: %v)", name, Names())
	}
}

// TableSize is the number of entries in an rpack substitution table.
const TableSize = 256

// Table is the rpack codec: every byte b is encoded as encode[b].
type Table struct {
	encode [TableSize]byte
	decode [TableSize]byte
}

// NewTable builds a codec from an encode map. The map must be a
// permutation of 0..255, otherwise decoding would be ambiguous.
func NewTable(encodeMap []byte) (*Table, error) {
	if len(encodeMap) != TableSize {
		return nil, fmt.Errorf("rpack table must be %d bytes, got %d", TableSize, len(encodeMap))
	}

	t := &Table{}
	var seen [TableSize]bool
	for plain, packed := range encodeMap {
		if seen[packed] {
			return nil, fmt.Errorf("rpack table is not a permutation: byte 0x%02x appears twice", packed)
		}
		seen[packed] = true
		t.encode[plain] = packed
		t.decode[packed] = byte(plain)
	}
	return t, nil
}

// LoadTable reads an encode map from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rpack table: %w", err)
	}
	t, err := NewTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Name implements Codec.
func (t *Table) Name() string { return NameRPack }

// Decompress implements Decompressor. A substitution cannot fail.
func (t *Table) Decompress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = t.decode[b]
	}
	return out, nil
}

// Compress implements Compressor.
func (t *Table) Compress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = t.encode[b]
	}
	return out, nil
}

// Zstd is a zstandard codec. Its decoder and encoder are safe for
// concurrent use through DecodeAll/EncodeAll.
type Zstd struct {
	dec *zstd.Decoder
	enc *zstd.Encoder
}

// NewZstd creates a zstd codec. Call Close to release its goroutines.
func NewZstd() (*Zstd, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		dec.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Zstd{dec: dec, enc: enc}, nil
}

// Name implements Codec.
func (z *Zstd) Name() string { return NameZstd }

// Decompress implements Decompressor.
func (z *Zstd) Decompress(src []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %v: %w", err, model.ErrCorruptPayload)
	}
	return out, nil
}

// Compress implements Compressor.
func (z *Zstd) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, nil), nil
}

// Close releases the decoder and encoder.
func (z *Zstd) Close() {
	z.dec.Close()
	_ = z.enc.Close()
}

// Gzip is a gzip codec.
type Gzip struct{}

// Name implements Codec.
func (Gzip) Name() string { return NameGzip }

// Decompress implements Decompressor.
func (Gzip) Decompress(src []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("gzip: %v: %w", err, model.ErrCorruptPayload)
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip: %v: %w", err, model.ErrCorruptPayload)
	}
	return out, nil
}

// Compress implements Compressor.
func (Gzip) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// Identity stores payloads as-is.
type Identity struct{}

// Name implements Codec.
func (Identity) Name() string { return NameNone }

// Decompress implements Decompressor.
func (Identity) Decompress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// Compress implements Compressor.
func (Identity) Compress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

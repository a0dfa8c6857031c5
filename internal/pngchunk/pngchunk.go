// Package pngchunk splits a PNG byte stream into its chunks and builds
// PNG streams from chunks.
//
// Only the chunk framing is handled (length, type, data, CRC). Image data
// is never decoded; callers pick the chunk types they care about.
package pngchunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// Signature is the fixed 8-byte PNG file signature.
var Signature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	// TypeText is the uncompressed Latin-1 text chunk used by character
	// cards for both metadata and embedded assets.
	TypeText = "tEXt"

	// TypeEnd terminates a PNG stream.
	TypeEnd = "IEND"

	// chunkOverhead is length(4) + type(4) + crc(4).
	chunkOverhead = 12
)

// Chunk is one PNG chunk with its 4-character type tag.
type Chunk struct {
	Type string
	Data []byte
}

// Split parses data into chunks, verifying each CRC. Scanning stops after
// IEND; trailing bytes are ignored.
//
// Structural problems (missing signature, truncated chunk, CRC mismatch,
// no IEND) are reported as model.ErrMalformedContainer.
func Split(data []byte) ([]Chunk, error) {
	if !bytes.HasPrefix(data, Signature) {
		return nil, fmt.Errorf("png: invalid signature: %w", model.ErrMalformedContainer)
	}

	var chunks []Chunk
	pos := len(Signature)
	for {
		if len(data)-pos < chunkOverhead {
			return nil, fmt.Errorf("png: truncated chunk header at offset %d: %w", pos, model.ErrMalformedContainer)
		}

		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typeStart := pos + 4
		dataStart := typeStart + 4
		// length is compared against the remaining bytes first so the sum
		// below cannot overflow on 32-bit platforms.
		if length < 0 || length > len(data)-dataStart-4 {
			return nil, fmt.Errorf("png: chunk at offset %d declares %d bytes past end of data: %w",
				pos, length, model.ErrMalformedContainer)
		}
		dataEnd := dataStart + length

		chunkType := string(data[typeStart:dataStart])
		want := binary.BigEndian.Uint32(data[dataEnd : dataEnd+4])
		if got := crc32.ChecksumIEEE(data[typeStart:dataEnd]); got != want {
			return nil, fmt.Errorf("png: CRC mismatch in %s chunk at offset %d: %w",
				chunkType, pos, model.ErrMalformedContainer)
		}

		chunks = append(chunks, Chunk{Type: chunkType, Data: data[dataStart:dataEnd]})
		pos = dataEnd + 4

		if chunkType == TypeEnd {
			return chunks, nil
		}
	}
}

// Encode serialises chunks behind the PNG signature, computing CRCs.
// The caller is responsible for chunk order (IHDR first, IEND last).
func Encode(chunks []Chunk) []byte {
	var buf bytes.Buffer
	buf.Write(Signature)

	var word [4]byte
	for _, c := range chunks {
		binary.BigEndian.PutUint32(word[:], uint32(len(c.Data)))
		buf.Write(word[:])

		crc := crc32.NewIEEE()
		_, _ = crc.Write([]byte(c.Type))
		_, _ = crc.Write(c.Data)

		buf.WriteString(c.Type)
		buf.Write(c.Data)
		binary.BigEndian.PutUint32(word[:], crc.Sum32())
		buf.Write(word[:])
	}
	return buf.Bytes()
}

// TextChunk builds a tEXt chunk holding "key\0value".
func TextChunk(key, value string) Chunk {
	data := make([]byte, 0, len(key)+1+len(value))
	data = append(data, key...)
	data = append(data, 0)
	data = append(data, value...)
	return Chunk{Type: TypeText, Data: data}
}

// Minimal returns the chunks of a valid 1x1 grayscale PNG. It is the
// skeleton that text chunks are spliced into when building cards.
func Minimal() []Chunk {
	ihdr := []byte{
		0, 0, 0, 1, // width
		0, 0, 0, 1, // height
		8,       // bit depth
		0,       // color type: grayscale
		0, 0, 0, // compression, filter, interlace
	}
	// zlib stream of a single scanline: filter byte 0 + one 0x00 pixel.
	idat := []byte{0x78, 0x9C, 0x63, 0x60, 0x00, 0x00, 0x00, 0x02, 0x00, 0x01}
	return []Chunk{
		{Type: "IHDR", Data: ihdr},
		{Type: "IDAT", Data: idat},
		{Type: TypeEnd, Data: nil},
	}
}

// WithText returns a minimal PNG with the given tEXt chunks inserted
// before IEND, in order.
func WithText(texts ...Chunk) []byte {
	base := Minimal()
	chunks := make([]Chunk, 0, len(base)+len(texts))
	chunks = append(chunks, base[:len(base)-1]...)
	chunks = append(chunks, texts...)
	chunks = append(chunks, base[len(base)-1])
	return Encode(chunks)
}

// Package sniff classifies raw bytes by their leading magic numbers.
//
// Detect decides which container parser handles an input. InferExtension
// guesses a file extension for an asset payload whose manifest entry did
// not declare one.
package sniff

import (
	"bytes"

	"github.com/h2non/filetype"

	"github.com/shinji-kodama/risu-extract/internal/archive"
	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/pngchunk"
)

// Detect classifies data as an image container (PNG signature) or an
// archive container (anything the ZIP reader can open). Everything else
// is model.ErrUnsupportedFormat.
//
// Detect never returns model.KindModule: module files carry a one-byte
// magic that collides with ordinary text, so callers opt in to module
// parsing explicitly.
func Detect(data []byte) (model.ContainerKind, error) {
	if len(data) >= len(pngchunk.Signature) && bytes.Equal(data[:len(pngchunk.Signature)], pngchunk.Signature) {
		return model.KindImage, nil
	}
	if _, err := archive.Open(data); err == nil {
		return model.KindArchive, nil
	}
	return "", model.ErrUnsupportedFormat
}

// minMagicLen is the shortest payload InferExtension will look at. The
// WEBP check needs bytes 8..11.
const minMagicLen = 12

// magicSignature is one entry of the fixed extension table.
type magicSignature struct {
	ext    string
	offset int
	magic  []byte
}

// imageSignatures is checked in order; the first match wins.
var imageSignatures = [][]magicSignature{
	{{ext: "png", magic: []byte{0x89, 0x50, 0x4E, 0x47}}},
	{{ext: "jpg", magic: []byte{0xFF, 0xD8, 0xFF}}},
	{{ext: "gif", magic: []byte{0x47, 0x49, 0x46, 0x38}}},
	{
		{ext: "webp", magic: []byte("RIFF")},
		{ext: "webp", offset: 8, magic: []byte("WEBP")},
	},
}

// InferExtension returns the extension (without dot) implied by the
// payload's leading bytes, or "" when nothing matches.
//
// Only png, jpg, gif and webp are recognised by default. With extended
// set, payloads outside that table are passed to h2non/filetype so audio,
// video and font assets also get an extension.
func InferExtension(data []byte, extended bool) string {
	if len(data) < minMagicLen {
		return ""
	}

	for _, group := range imageSignatures {
		matched := true
		for _, sig := range group {
			if !bytes.Equal(data[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
				matched = false
				break
			}
		}
		if matched {
			return group[0].ext
		}
	}

	if !extended {
		return ""
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.Extension
}

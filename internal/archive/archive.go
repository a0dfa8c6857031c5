// Package archive reads and builds ZIP containers in memory.
//
// It is a thin layer over github.com/klauspost/compress/zip (a drop-in,
// faster implementation of archive/zip) exposing exactly the two
// operations the extractor needs: open an archive from bytes and look up
// entries by exact name, and build an archive from named byte buffers.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zip"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// Entry is one named file to place in a built archive.
type Entry struct {
	Name string
	Data []byte
}

// Reader gives name-based access to the entries of an in-memory archive.
// Directory entries are not indexed.
type Reader struct {
	files map[string]*zip.File
	names []string
}

// Open parses data as a ZIP archive. Any failure is reported as
// model.ErrMalformedContainer.
func Open(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip: %v: %w", err, model.ErrMalformedContainer)
	}

	r := &Reader{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Later duplicates shadow earlier ones, like most unzip tools.
		if _, seen := r.files[f.Name]; !seen {
			r.names = append(r.names, f.Name)
		}
		r.files[f.Name] = f
	}
	sort.Strings(r.names)
	return r, nil
}

// Names returns all file entry names, sorted.
func (r *Reader) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Has reports whether an entry with exactly this name exists.
func (r *Reader) Has(name string) bool {
	_, ok := r.files[name]
	return ok
}

// ReadEntry returns the decompressed bytes of the named entry.
// ok is false when the entry does not exist; err is set only when the
// entry exists but cannot be read.
//
// Reader is safe for concurrent ReadEntry calls: each call opens its own
// decompression stream over the shared, read-only backing buffer.
func (r *Reader) ReadEntry(name string) (data []byte, ok bool, err error) {
	f, ok := r.files[name]
	if !ok {
		return nil, false, nil
	}

	rc, err := f.Open()
	if err != nil {
		return nil, true, fmt.Errorf("zip: open %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, true, fmt.Errorf("zip: read %s: %w", name, err)
	}
	return data, true, nil
}

// Build writes entries, in order, into a new deflate-compressed archive.
func Build(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", e.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

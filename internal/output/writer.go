package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/risu-extract/internal/archive"
	"github.com/shinji-kodama/risu-extract/internal/extract"
	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/naming"
)

// Options control what Write produces.
type Options struct {
	// Dir is the directory all outputs are written into.
	Dir string

	// Zip packs the assets into a single archive; otherwise they are
	// written as loose files into a directory.
	Zip bool

	// ExportMetadata writes the metadata/structure JSON file.
	ExportMetadata bool

	// Report writes a YAML run report.
	Report bool

	// Naming is the mode the assets were named with. It only affects the
	// output archive name of cards.
	Naming model.NamingMode
}

// Written lists the paths Write created. Empty fields were not written.
type Written struct {
	Assets   string
	Metadata string
	Report   string

	// Renamed counts loose asset files written under a suffixed name
	// because the directory already held a file with their name.
	Renamed int
}

// Paths returns the non-empty paths in a stable order.
func (w *Written) Paths() []string {
	var out []string
	for _, p := range []string{w.Assets, w.Metadata, w.Report} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Write stores res under opts.Dir. sourcePath is the input file; its base
// name prefixes every output.
//
// Assets are only written when at least one was resolved, and metadata
// only when the document is not absent.
func Write(res *extract.Result, sourcePath string, opts Options) (*Written, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	base := BaseName(sourcePath)
	w := &Written{}

	if len(res.Assets) > 0 {
		name := AssetsName(res.Kind, base, res.ModuleName, opts.Naming)
		if opts.Zip {
			w.Assets = filepath.Join(dir, name+".zip")
			if err := WriteArchive(w.Assets, res.Assets); err != nil {
				return nil, err
			}
		} else {
			w.Assets = filepath.Join(dir, name)
			renamed, err := WriteDir(w.Assets, res.Assets)
			if err != nil {
				return nil, err
			}
			w.Renamed = renamed
		}
	}

	if opts.ExportMetadata && !res.Metadata.IsAbsent() {
		w.Metadata = filepath.Join(dir, MetadataName(res.Kind, base))
		if err := WriteMetadata(w.Metadata, res.Metadata); err != nil {
			return nil, err
		}
	}

	if opts.Report {
		w.Report = filepath.Join(dir, ReportName(base))
		data, err := GenerateReport(res, sourcePath, w)
		if err != nil {
			return nil, err
		}
		if err := WriteFile(w.Report, data); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// WriteArchive packs assets, in order, into a ZIP archive at path.
func WriteArchive(path string, assets []model.ResolvedAsset) error {
	entries := make([]archive.Entry, len(assets))
	for i, a := range assets {
		if err := checkLocal(a.FinalFilename); err != nil {
			return err
		}
		entries[i] = archive.Entry{Name: a.FinalFilename, Data: a.Bytes}
	}
	data, err := archive.Build(entries)
	if err != nil {
		return fmt.Errorf("failed to build asset archive: %w", err)
	}
	return WriteFile(path, data)
}

// WriteDir writes every asset as a file inside dir. Files already in dir
// are never overwritten: an asset whose name is taken gets the same
// index suffix the namer uses, assets[i].FinalFilename is updated to the
// name actually written, and the number of such assets is returned.
func WriteDir(dir string, assets []model.ResolvedAsset) (int, error) {
	for _, a := range assets {
		if err := checkLocal(a.FinalFilename); err != nil {
			return 0, err
		}
	}

	existing, err := listNames(dir)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	alloc := naming.NewAllocator(model.NamingByName)
	alloc.SetExisting(existing)
	for i := range assets {
		a := &assets[i]
		a.FinalFilename = alloc.Allocate(a.FinalFilename, a.OriginalIndex)
		p := filepath.Join(dir, a.FinalFilename)
		if err := os.WriteFile(p, a.Bytes, 0o644); err != nil {
			return 0, fmt.Errorf("failed to write %s: %w", p, err)
		}
	}
	return alloc.Renamed(), nil
}

// checkLocal rejects asset names that are not a single local path
// component.
func checkLocal(name string) error {
	if !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("refusing to write asset %q outside the output directory", name)
	}
	return nil
}

// listNames returns the entry names in dir, or nil when dir does not
// exist yet.
func listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// WriteMetadata writes the pretty-printed metadata export to path.
func WriteMetadata(path string, doc *model.MetadataDocument) error {
	data, err := doc.Export()
	if err != nil {
		return err
	}
	return WriteFile(path, append(data, '\n'))
}

// WriteFile writes data to path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

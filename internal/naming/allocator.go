package naming

import (
	"fmt"
	"strings"

	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/sniff"
)

// Allocator hands out final filenames for one extraction run.
//
// It tracks every name it has allocated (lower-cased) so that later
// allocations in the same run never collide with earlier ones. An
// Allocator must not be shared between runs.
type Allocator struct {
	mode model.NamingMode
	used map[string]struct{}

	// renamed counts allocations that could not keep their base name.
	renamed int
}

// NewAllocator creates an Allocator for the given naming mode.
// An invalid mode falls back to model.NamingByName.
func NewAllocator(mode model.NamingMode) *Allocator {
	if !mode.IsValid() {
		mode = model.NamingByName
	}
	return &Allocator{
		mode: mode,
		used: make(map[string]struct{}),
	}
}

// SetExisting registers names that are already taken (for example files
// already present in an output directory). They are matched
// case-insensitively.
func (a *Allocator) SetExisting(names []string) {
	for _, n := range names {
		a.used[strings.ToLower(n)] = struct{}{}
	}
}

// Renamed returns how many allocations received a collision suffix.
func (a *Allocator) Renamed() int {
	return a.renamed
}

// Allocate returns the final filename for base (already carrying its
// extension) belonging to the asset with the given index.
//
// Algorithm:
//  1. By-name mode starts from base; numbered mode from "<index>_<base>".
//  2. If that name is free (case-insensitively), take it.
//  3. Otherwise split at the last dot and try "<stem>_<index>.<ext>"
//     (or "<base>_<index>" without a dot).
//  4. If even that is taken (duplicate indices), append "_2", "_3", ...
//     to the stem until a free name is found.
func (a *Allocator) Allocate(base string, index int) string {
	candidate := base
	if a.mode == model.NamingNumbered {
		candidate = fmt.Sprintf("%d_%s", index, base)
	}

	if a.take(candidate) {
		return candidate
	}

	a.renamed++
	stem, ext := splitExt(candidate)
	suffixed := fmt.Sprintf("%s_%d", stem, index)
	if a.take(joinExt(suffixed, ext)) {
		return joinExt(suffixed, ext)
	}
	for n := 2; ; n++ {
		name := joinExt(fmt.Sprintf("%s_%d", suffixed, n), ext)
		if a.take(name) {
			return name
		}
	}
}

// take reserves name if it is free.
func (a *Allocator) take(name string) bool {
	key := strings.ToLower(name)
	if _, exists := a.used[key]; exists {
		return false
	}
	a.used[key] = struct{}{}
	return true
}

// splitExt splits at the last dot. ext excludes the dot; a name without
// a dot has an empty ext.
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

func joinExt(stem, ext string) string {
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

// BaseFilename appends ".ext" to name unless name already ends with it
// (case-insensitively) or ext is empty.
func BaseFilename(name, ext string) string {
	if ext == "" {
		return name
	}
	if strings.HasSuffix(strings.ToLower(name), "."+strings.ToLower(ext)) {
		return name
	}
	return name + "." + ext
}

// SanitizeComponent makes a manifest-supplied name safe to use as a single
// path component: separators and control characters become "_", and the
// special names "." and ".." become empty.
func SanitizeComponent(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7F:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// CleanExtension returns ext without a leading dot, or "" when it could
// not be used as the tail of a single path component (separators,
// control characters, "..").
func CleanExtension(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" || strings.Contains(ext, "..") {
		return ""
	}
	for _, r := range ext {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7F {
			return ""
		}
	}
	return ext
}

// Options control Correlate.
type Options struct {
	// Mode selects by-name or numbered filenames.
	Mode model.NamingMode

	// ExtendedSniff widens extension inference beyond png/jpg/gif/webp.
	ExtendedSniff bool
}

// Result is the output of Correlate.
type Result struct {
	Assets []model.ResolvedAsset

	// Renamed is the number of assets that received a collision suffix.
	Renamed int

	// Unmatched is the number of descriptors with no payload.
	Unmatched int
}

// Correlate matches descriptors to payloads by index and allocates a final
// filename for each match, in descriptor order. Descriptors without a
// payload are dropped; payloads without a descriptor are ignored.
//
// When a descriptor has no usable extension hint, the extension is
// inferred from the payload's magic bytes.
func Correlate(descs []model.AssetDescriptor, payloads map[int][]byte, opts Options) Result {
	return resolve(descs, func(_ int, d model.AssetDescriptor) ([]byte, bool) {
		data, ok := payloads[d.Index]
		return data, ok
	}, opts)
}

// CorrelateBound is Correlate for containers that read each descriptor's
// bytes alongside it: bound[i] belongs to descs[i], so two descriptors
// sharing an index keep their own bytes. A nil entry counts as unmatched.
func CorrelateBound(descs []model.AssetDescriptor, bound [][]byte, opts Options) Result {
	return resolve(descs, func(i int, _ model.AssetDescriptor) ([]byte, bool) {
		if i >= len(bound) || bound[i] == nil {
			return nil, false
		}
		return bound[i], true
	}, opts)
}

func resolve(descs []model.AssetDescriptor, payloadFor func(int, model.AssetDescriptor) ([]byte, bool), opts Options) Result {
	alloc := NewAllocator(opts.Mode)

	res := Result{Assets: make([]model.ResolvedAsset, 0, len(descs))}
	for i, d := range descs {
		data, ok := payloadFor(i, d)
		if !ok {
			res.Unmatched++
			continue
		}

		ext := CleanExtension(d.ExtensionHint)
		if ext == "" {
			ext = sniff.InferExtension(data, opts.ExtendedSniff)
		}

		name := SanitizeComponent(d.DisplayName)
		if name == "" {
			name = fmt.Sprintf("asset_%d", d.Index)
		}

		res.Assets = append(res.Assets, model.ResolvedAsset{
			FinalFilename: alloc.Allocate(BaseFilename(name, ext), d.Index),
			Bytes:         data,
			OriginalIndex: d.Index,
		})
	}
	res.Renamed = alloc.Renamed()
	return res
}

package manifest

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// Shape tags the structural variant of one manifest entry.
type Shape int

const (
	// ShapeUnknown entries are skipped.
	ShapeUnknown Shape = iota

	// ShapeObject is {"uri": ..., "name": ..., "ext": ...}.
	ShapeObject

	// ShapeTuple is [path, uri] or [path, uri, ext].
	ShapeTuple
)

// String returns the shape name used in log lines.
func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeTuple:
		return "tuple"
	default:
		return "unknown"
	}
}

// Candidate is one manifest entry after structural classification.
// Only the field matching Shape is set.
type Candidate struct {
	Shape  Shape
	Object map[string]any
	Tuple  []any
}

// Classify inspects entry once and tags its shape. A tuple needs at least
// two elements and a string path in first position.
func Classify(entry any) Candidate {
	switch v := entry.(type) {
	case map[string]any:
		return Candidate{Shape: ShapeObject, Object: v}
	case []any:
		if len(v) >= 2 {
			if _, ok := v[0].(string); ok {
				return Candidate{Shape: ShapeTuple, Tuple: v}
			}
		}
	}
	return Candidate{Shape: ShapeUnknown}
}

// Section names one of the manifest lists that may carry asset entries.
type Section int

const (
	// SectionAssets is data.assets.
	SectionAssets Section = iota

	// SectionAdditionalAssets is data.extensions.risuai.additionalAssets.
	SectionAdditionalAssets

	// SectionEmotions is data.extensions.risuai.emotions.
	SectionEmotions
)

// CardSections is the fixed merge order for image containers.
var CardSections = []Section{SectionAssets, SectionAdditionalAssets, SectionEmotions}

// Candidates concatenates the requested sections of a card's data subtree,
// in the order given. Missing or non-list sections contribute nothing.
func Candidates(data map[string]any, sections ...Section) []any {
	var out []any
	for _, s := range sections {
		switch s {
		case SectionAssets:
			out = append(out, list(data, "assets")...)
		case SectionAdditionalAssets:
			out = append(out, list(risuai(data), "additionalAssets")...)
		case SectionEmotions:
			out = append(out, list(risuai(data), "emotions")...)
		}
	}
	return out
}

// Normalize turns card manifest entries into descriptors, preserving
// order. Object entries without a uri and unknown shapes are skipped.
// Entries whose URI has no recoverable index get their position in
// entries as a synthetic index.
func Normalize(entries []any) []model.AssetDescriptor {
	descs := make([]model.AssetDescriptor, 0, len(entries))
	for pos, entry := range entries {
		var (
			uri, name, ext string
		)

		c := Classify(entry)
		switch c.Shape {
		case ShapeObject:
			uri = str(c.Object["uri"])
			name = str(c.Object["name"])
			ext = str(c.Object["ext"])
		case ShapeTuple:
			name = tupleDisplayName(c.Tuple[0].(string))
			uri = str(c.Tuple[1])
			ext = "png"
			if len(c.Tuple) > 2 {
				ext = str(c.Tuple[2])
			}
		default:
			continue
		}
		if uri == "" {
			continue
		}

		d := model.AssetDescriptor{
			DisplayName:   name,
			ExtensionHint: ext,
		}
		if idx, ok := ExtractIndex(uri); ok {
			d.Index = idx
		} else {
			d.Index = pos
			d.Synthetic = true
		}
		if p, ok := ArchivePath(uri); ok {
			d.Locator = model.SourceLocator{Kind: model.LocatorArchive, ArchivePath: p}
		} else {
			d.Locator = model.SourceLocator{Kind: model.LocatorEmbedded, EmbeddedIndex: d.Index}
		}
		if d.DisplayName == "" {
			d.DisplayName = "asset_" + strconv.Itoa(d.Index)
		}
		descs = append(descs, d)
	}
	return descs
}

// NormalizeModule turns module.assets tuples into descriptors. The index
// of each descriptor is its position, which is also the position of its
// payload record in the binary stream. Malformed tuples still occupy
// their position so later records stay aligned.
func NormalizeModule(assets []any) []model.AssetDescriptor {
	descs := make([]model.AssetDescriptor, 0, len(assets))
	for pos, entry := range assets {
		d := model.AssetDescriptor{
			Index:   pos,
			Locator: model.SourceLocator{Kind: model.LocatorEmbedded, EmbeddedIndex: pos},
		}
		if tuple, ok := entry.([]any); ok {
			if len(tuple) > 0 {
				d.DisplayName = str(tuple[0])
			}
			if len(tuple) > 2 {
				d.ExtensionHint = ExtensionFromMIME(str(tuple[2]))
			}
		}
		if d.DisplayName == "" {
			d.DisplayName = "asset_" + strconv.Itoa(pos)
		}
		descs = append(descs, d)
	}
	return descs
}

// ExtensionFromMIME returns the text after the last "/" of a MIME-like
// asset type when it is 1 to 4 characters long, else "".
func ExtensionFromMIME(assetType string) string {
	i := strings.LastIndex(assetType, "/")
	if i < 0 {
		return ""
	}
	ext := assetType[i+1:]
	if len(ext) < 1 || len(ext) > 4 {
		return ""
	}
	return ext
}

const assetURIPrefix = "__asset:"

// trailingIndexRe matches ".../<digits>.<ext>" at the end of a URI.
var trailingIndexRe = regexp.MustCompile(`/(\d+)\.[^/.]+$`)

// ExtractIndex recovers the payload index a URI refers to:
// "__asset:7" → 7, ".../folder/12.png" → 12. ok is false otherwise.
func ExtractIndex(uri string) (int, bool) {
	if strings.HasPrefix(uri, assetURIPrefix) {
		n, err := strconv.Atoi(uri[strings.LastIndex(uri, ":")+1:])
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}

	m := trailingIndexRe.FindStringSubmatch(uri)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// embedSchemes are the URI prefixes that point inside a .charx archive.
// "embeded://" is a misspelling emitted by some authoring tools.
var embedSchemes = []string{"embeded://", "embed://"}

// StripEmbedScheme returns the archive-relative path of an embed URI.
func StripEmbedScheme(uri string) (string, bool) {
	for _, scheme := range embedSchemes {
		if strings.HasPrefix(uri, scheme) {
			return strings.TrimPrefix(uri, scheme), true
		}
	}
	return "", false
}

// ArchivePath returns the archive entry a card asset uri names: the path
// after an embed scheme, or the uri itself when it is a plain relative
// path. URIs with any other scheme ("ccdefault:", "http://", "__asset:")
// do not point into an archive.
func ArchivePath(uri string) (string, bool) {
	if p, ok := StripEmbedScheme(uri); ok {
		return p, true
	}
	if strings.Contains(uri, ":") {
		return "", false
	}
	return strings.TrimPrefix(uri, "/"), true
}

// DeclaredAssetCount returns how many assets the metadata claims to hold.
// It is only used for "found X of Y" reporting.
func DeclaredAssetCount(doc *model.MetadataDocument) int {
	data := doc.Data()
	if data == nil {
		return 0
	}

	ext := risuai(data)
	switch doc.Spec() {
	case "chara_card_v3":
		if assets, ok := data["assets"].([]any); ok {
			return len(assets)
		}
	case "chara_card_v2":
		if ext != nil {
			vits, _ := ext["vits"].(map[string]any)
			return len(list(ext, "emotions")) + len(list(ext, "additionalAssets")) + len(vits)
		}
	}

	count := len(list(data, "assets"))
	if ext != nil {
		count += len(list(ext, "emotions")) + len(list(ext, "additionalAssets"))
	}
	return count
}

// tupleDisplayName takes the last path segment (either separator) and
// strips its extension.
func tupleDisplayName(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	base := p[strings.LastIndex(p, "/")+1:]
	if ext := path.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// risuai returns data.extensions.risuai, or nil.
func risuai(data map[string]any) map[string]any {
	exts, _ := data["extensions"].(map[string]any)
	r, _ := exts["risuai"].(map[string]any)
	return r
}

// list returns m[key] when it is a JSON array.
func list(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}

// str returns v when it is a string, else "".
func str(v any) string {
	s, _ := v.(string)
	return s
}

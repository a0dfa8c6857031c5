package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// decode parses a JSON literal into the generic tree encoding/json yields,
// which is what every parser hands to this package.
func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &tree))
	return tree
}

// TestExtractIndex covers both URI conventions and the no-index case.
func TestExtractIndex(t *testing.T) {
	tests := []struct {
		uri    string
		want   int
		wantOK bool
	}{
		{"__asset:7", 7, true},
		{"__asset:0", 0, true},
		{"__asset:a:b:12", 12, true},
		{"__asset:", 0, false},
		{"__asset:-3", 0, false},
		{"embeded://assets/icon/image/12.png", 12, true},
		{"https://example.com/folder/3.webp", 3, true},
		{"assets/12.png/extra", 0, false},
		{"opaque-no-number", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, ok := ExtractIndex(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// TestStripEmbedScheme verifies both spellings of the embed scheme.
func TestStripEmbedScheme(t *testing.T) {
	p, ok := StripEmbedScheme("embeded://assets/icon/image/0.png")
	assert.True(t, ok)
	assert.Equal(t, "assets/icon/image/0.png", p)

	p, ok = StripEmbedScheme("embed://x/1.png")
	assert.True(t, ok)
	assert.Equal(t, "x/1.png", p)

	_, ok = StripEmbedScheme("__asset:1")
	assert.False(t, ok)
}

func TestArchivePath(t *testing.T) {
	tests := []struct {
		uri    string
		want   string
		wantOK bool
	}{
		{"embeded://assets/icon/image/0.png", "assets/icon/image/0.png", true},
		{"embed://x/1.png", "x/1.png", true},
		{"assets/plain/x.png", "assets/plain/x.png", true},
		{"/assets/plain/x.png", "assets/plain/x.png", true},
		{"ccdefault:", "", false},
		{"https://example.com/a.png", "", false},
		{"__asset:1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, ok := ArchivePath(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestNormalize_DefaultIconTakesPosition pins the fallback for uris
// without an index: a CCv3 "ccdefault:" entry at position 0 gets index 0
// and an embedded locator, so it pairs with the payload of "__asset:0".
func TestNormalize_DefaultIconTakesPosition(t *testing.T) {
	got := Normalize([]any{
		map[string]any{"uri": "ccdefault:", "name": "main", "ext": "png"},
		map[string]any{"uri": "__asset:0", "name": "bg", "ext": "png"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.True(t, got[0].Synthetic)
	assert.Equal(t, model.LocatorEmbedded, got[0].Locator.Kind)
	assert.Equal(t, 0, got[1].Index)
	assert.False(t, got[1].Synthetic)
}

// TestClassify checks that each shape is recognised structurally.
func TestClassify(t *testing.T) {
	assert.Equal(t, ShapeObject, Classify(map[string]any{"uri": "__asset:1"}).Shape)
	assert.Equal(t, ShapeTuple, Classify([]any{"a/b.png", "__asset:1"}).Shape)
	assert.Equal(t, ShapeUnknown, Classify([]any{"only-one"}).Shape)
	assert.Equal(t, ShapeUnknown, Classify([]any{1.0, "__asset:1"}).Shape)
	assert.Equal(t, ShapeUnknown, Classify("string").Shape)
	assert.Equal(t, ShapeUnknown, Classify(nil).Shape)
}

// TestNormalize_Shapes verifies object and tuple entries side by side,
// including skipped entries and synthetic indices.
func TestNormalize_Shapes(t *testing.T) {
	entries := []any{
		map[string]any{"uri": "__asset:3", "name": "icon", "ext": "png"},
		[]any{`folder\sub\happy.webp`, "__asset:5"},
		[]any{"sad.png", "__asset:6", "jpg"},
		"garbage",
		map[string]any{"name": "no-uri"},
		map[string]any{"uri": "no-number", "name": "mystery"},
		map[string]any{"uri": "embeded://assets/other/9.mp3", "name": "bgm", "ext": "mp3"},
	}

	got := Normalize(entries)
	require.Len(t, got, 5)

	assert.Equal(t, model.AssetDescriptor{
		Index: 3, DisplayName: "icon", ExtensionHint: "png",
		Locator: model.SourceLocator{Kind: model.LocatorEmbedded, EmbeddedIndex: 3},
	}, got[0])

	// Tuple: last path segment minus extension, default ext png.
	assert.Equal(t, "happy", got[1].DisplayName)
	assert.Equal(t, "png", got[1].ExtensionHint)
	assert.Equal(t, 5, got[1].Index)

	// Tuple with explicit third element.
	assert.Equal(t, "sad", got[2].DisplayName)
	assert.Equal(t, "jpg", got[2].ExtensionHint)

	// No recoverable index: position in the candidate list.
	assert.Equal(t, "mystery", got[3].DisplayName)
	assert.Equal(t, 5, got[3].Index)
	assert.True(t, got[3].Synthetic)

	// Embed URIs locate archive entries.
	assert.Equal(t, 9, got[4].Index)
	assert.Equal(t, model.LocatorArchive, got[4].Locator.Kind)
	assert.Equal(t, "assets/other/9.mp3", got[4].Locator.ArchivePath)
}

// TestNormalize_DuplicateIndicesKept verifies that duplicate indices are
// tolerated and keep their list order.
func TestNormalize_DuplicateIndicesKept(t *testing.T) {
	got := Normalize([]any{
		map[string]any{"uri": "__asset:1", "name": "first"},
		map[string]any{"uri": "__asset:1", "name": "second"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].DisplayName)
	assert.Equal(t, "second", got[1].DisplayName)
}

// TestCandidates verifies the fixed merge order of the three sections.
func TestCandidates(t *testing.T) {
	data := decode(t, `{
		"assets": [{"uri": "__asset:0", "name": "a"}],
		"extensions": {"risuai": {
			"emotions": [["e.png", "__asset:2"]],
			"additionalAssets": [["b.png", "__asset:1", "png"]]
		}}
	}`)

	got := Normalize(Candidates(data, CardSections...))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "e"},
		[]string{got[0].DisplayName, got[1].DisplayName, got[2].DisplayName})

	assert.Len(t, Candidates(data, SectionAssets), 1)
	assert.Empty(t, Candidates(map[string]any{}, CardSections...))
}

// TestNormalizeModule checks positional indices and MIME handling.
func TestNormalizeModule(t *testing.T) {
	assets := decode(t, `{"a": [
		["bg", null, "image/png"],
		["theme.css", null, "text/stylesheet"],
		["voice", null, null],
		"broken"
	]}`)["a"].([]any)

	got := NormalizeModule(assets)
	require.Len(t, got, 4)

	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "bg", got[0].DisplayName)
	assert.Equal(t, "png", got[0].ExtensionHint)

	assert.Equal(t, "theme.css", got[1].DisplayName)
	assert.Empty(t, got[1].ExtensionHint, "subtype longer than 4 chars is rejected")

	assert.Empty(t, got[2].ExtensionHint)

	// Broken entries keep their slot so later records stay aligned.
	assert.Equal(t, 3, got[3].Index)
	assert.Equal(t, "asset_3", got[3].DisplayName)
}

// TestExtensionFromMIME covers the 1..4 length window.
func TestExtensionFromMIME(t *testing.T) {
	assert.Equal(t, "png", ExtensionFromMIME("image/png"))
	assert.Equal(t, "webp", ExtensionFromMIME("image/webp"))
	assert.Equal(t, "", ExtensionFromMIME("audio/mpeg3"))
	assert.Equal(t, "", ExtensionFromMIME("image/"))
	assert.Equal(t, "", ExtensionFromMIME("png"))
	assert.Equal(t, "x", ExtensionFromMIME("a/b/x"))
}

// TestDeclaredAssetCount covers the three counting rules.
func TestDeclaredAssetCount(t *testing.T) {
	tests := []struct {
		name string
		json string
		want int
	}{
		{
			name: "v3 counts data.assets",
			json: `{"spec":"chara_card_v3","data":{"assets":[{},{},{}],
				"extensions":{"risuai":{"emotions":[[],[]]}}}}`,
			want: 3,
		},
		{
			name: "v2 counts risuai lists and vits",
			json: `{"spec":"chara_card_v2","data":{"assets":[{}],
				"extensions":{"risuai":{"emotions":[[]],"additionalAssets":[[],[]],"vits":{"a":1,"b":2}}}}}`,
			want: 5,
		},
		{
			name: "other specs sum assets and risuai lists",
			json: `{"data":{"assets":[{}],"extensions":{"risuai":{"emotions":[[]],"additionalAssets":[[]]}}}}`,
			want: 3,
		},
		{
			name: "no data",
			json: `{"spec":"chara_card_v3"}`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := model.StructuredMetadata(decode(t, tt.json))
			assert.Equal(t, tt.want, DeclaredAssetCount(doc))
		})
	}

	assert.Equal(t, 0, DeclaredAssetCount(model.OpaqueMetadata("rcc||x", model.OpaqueEncrypted)))
}

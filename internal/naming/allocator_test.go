package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}

// desc is a small constructor to keep the tables readable.
func desc(index int, name, ext string) model.AssetDescriptor {
	return model.AssetDescriptor{Index: index, DisplayName: name, ExtensionHint: ext}
}

// TestBaseFilename verifies the case-insensitive extension check.
func TestBaseFilename(t *testing.T) {
	tests := []struct {
		name, ext, want string
	}{
		{"icon", "png", "icon.png"},
		{"icon.png", "png", "icon.png"},
		{"ICON.PNG", "png", "ICON.PNG"},
		{"icon.png", "webp", "icon.png.webp"},
		{"icon", "", "icon"},
		{"iconpng", "png", "iconpng.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"+"+tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseFilename(tt.name, tt.ext))
		})
	}
}

// TestAllocate_ByName verifies first-wins and the index suffix fallback.
func TestAllocate_ByName(t *testing.T) {
	a := NewAllocator(model.NamingByName)

	assert.Equal(t, "icon.png", a.Allocate("icon.png", 0))
	assert.Equal(t, "icon_4.png", a.Allocate("ICON.png", 4), "case-insensitive collision")
	assert.Equal(t, "readme", a.Allocate("readme", 5))
	assert.Equal(t, "README_6", a.Allocate("README", 6), "no dot: suffix appended to the whole name")
	assert.Equal(t, 2, a.Renamed())
}

// TestAllocate_DuplicateIndex verifies that even a repeated (name, index)
// pair never produces a duplicate filename.
func TestAllocate_DuplicateIndex(t *testing.T) {
	a := NewAllocator(model.NamingByName)

	names := []string{
		a.Allocate("x.png", 1),
		a.Allocate("x.png", 1),
		a.Allocate("x.png", 1),
	}
	assert.Equal(t, []string{"x.png", "x_1.png", "x_1_2.png"}, names)
}

// TestAllocate_Numbered verifies the index prefix.
func TestAllocate_Numbered(t *testing.T) {
	a := NewAllocator(model.NamingNumbered)

	assert.Equal(t, "0_icon.png", a.Allocate("icon.png", 0))
	assert.Equal(t, "1_icon.png", a.Allocate("Icon.png", 1))
	assert.Zero(t, a.Renamed())
}

// TestAllocate_Existing verifies that pre-registered names are avoided.
func TestAllocate_Existing(t *testing.T) {
	a := NewAllocator(model.NamingByName)
	a.SetExisting([]string{"Icon.PNG"})

	assert.Equal(t, "icon_2.png", a.Allocate("icon.png", 2))
}

// TestCorrelate_CaseCollision is the naming collision property: two
// descriptors whose base names differ only by case.
func TestCorrelate_CaseCollision(t *testing.T) {
	descs := []model.AssetDescriptor{desc(3, "Icon", "png"), desc(8, "icon", "png")}
	payloads := map[int][]byte{3: []byte("a"), 8: []byte("b")}

	t.Run("by name", func(t *testing.T) {
		res := Correlate(descs, payloads, Options{Mode: model.NamingByName})
		require.Len(t, res.Assets, 2)

		first, second := res.Assets[0].FinalFilename, res.Assets[1].FinalFilename
		assert.NotEqual(t, strings.ToLower(first), strings.ToLower(second))
		assert.Equal(t, "Icon.png", first)
		assert.Contains(t, second, "8")
		assert.Equal(t, 1, res.Renamed)
	})

	t.Run("numbered", func(t *testing.T) {
		res := Correlate(descs, payloads, Options{Mode: model.NamingNumbered})
		require.Len(t, res.Assets, 2)
		assert.Equal(t, "3_Icon.png", res.Assets[0].FinalFilename)
		assert.Equal(t, "8_icon.png", res.Assets[1].FinalFilename)
		assert.Zero(t, res.Renamed)
	})
}

// TestCorrelate_DropsUnmatched checks both directions of mismatch:
// descriptors without payloads are dropped, unused payloads ignored.
func TestCorrelate_DropsUnmatched(t *testing.T) {
	descs := []model.AssetDescriptor{desc(0, "a", "png"), desc(1, "b", "png")}
	payloads := map[int][]byte{1: []byte("b"), 99: []byte("unused")}

	res := Correlate(descs, payloads, Options{})
	require.Len(t, res.Assets, 1)
	assert.Equal(t, "b.png", res.Assets[0].FinalFilename)
	assert.Equal(t, 1, res.Assets[0].OriginalIndex)
	assert.Equal(t, 1, res.Unmatched)
}

// TestCorrelate_InfersExtension verifies magic-byte inference when the
// descriptor has no extension hint.
func TestCorrelate_InfersExtension(t *testing.T) {
	descs := []model.AssetDescriptor{desc(0, "bg", ""), desc(1, "blob", "")}
	payloads := map[int][]byte{0: pngBytes, 1: []byte("plain text payload")}

	res := Correlate(descs, payloads, Options{})
	require.Len(t, res.Assets, 2)
	assert.Equal(t, "bg.png", res.Assets[0].FinalFilename)
	assert.Equal(t, "blob", res.Assets[1].FinalFilename)
}

// TestCorrelate_SanitizesNames verifies that manifest names cannot escape
// the output directory.
func TestCorrelate_SanitizesNames(t *testing.T) {
	descs := []model.AssetDescriptor{desc(0, "../../etc/passwd", "txt"), desc(1, "..", "png")}
	payloads := map[int][]byte{0: []byte("x"), 1: []byte("y")}

	res := Correlate(descs, payloads, Options{})
	require.Len(t, res.Assets, 2)
	assert.Equal(t, ".._.._etc_passwd.txt", res.Assets[0].FinalFilename)
	assert.Equal(t, "asset_1.png", res.Assets[1].FinalFilename)
}

func TestCleanExtension(t *testing.T) {
	tests := []struct {
		ext, want string
	}{
		{"png", "png"},
		{".webp", "webp"},
		{" jpg ", "jpg"},
		{"tar.gz", "tar.gz"},
		{"", ""},
		{"png/../../../escaped", ""},
		{`png\..\x`, ""},
		{"..", ""},
		{"a..b", ""},
		{"p\x00ng", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanExtension(tt.ext))
		})
	}
}

// TestCorrelate_UnsafeExtension verifies that an extension hint carrying
// path segments is discarded in favour of magic-byte inference.
func TestCorrelate_UnsafeExtension(t *testing.T) {
	descs := []model.AssetDescriptor{
		desc(0, "icon", "png/../../../escaped"),
		desc(1, "blob", `..\..\x`),
	}
	payloads := map[int][]byte{0: pngBytes, 1: []byte("plain text payload")}

	for _, mode := range []model.NamingMode{model.NamingByName, model.NamingNumbered} {
		res := Correlate(descs, payloads, Options{Mode: mode})
		require.Len(t, res.Assets, 2)
		for _, a := range res.Assets {
			assert.NotContains(t, a.FinalFilename, "/")
			assert.NotContains(t, a.FinalFilename, `\`)
			assert.NotContains(t, a.FinalFilename, "..")
		}
		assert.True(t, strings.HasSuffix(res.Assets[0].FinalFilename, "icon.png"))
	}
}

// TestCorrelateBound verifies that descriptors sharing an index keep the
// bytes read for them.
func TestCorrelateBound(t *testing.T) {
	descs := []model.AssetDescriptor{desc(0, "icon", "png"), desc(0, "other", "png"), desc(2, "gone", "png")}
	bound := [][]byte{[]byte("ICON"), []byte("OTHER"), nil}

	res := CorrelateBound(descs, bound, Options{})
	require.Len(t, res.Assets, 2)
	assert.Equal(t, "icon.png", res.Assets[0].FinalFilename)
	assert.Equal(t, []byte("ICON"), res.Assets[0].Bytes)
	assert.Equal(t, "other.png", res.Assets[1].FinalFilename)
	assert.Equal(t, []byte("OTHER"), res.Assets[1].Bytes)
	assert.Equal(t, 1, res.Unmatched)
}

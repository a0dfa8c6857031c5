package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/risu-extract/internal/archive"
	"github.com/shinji-kodama/risu-extract/internal/extract"
	"github.com/shinji-kodama/risu-extract/internal/model"
)

func sampleResult() *extract.Result {
	return &extract.Result{
		RunID:    "run-1",
		Kind:     model.KindImage,
		Metadata: model.StructuredMetadata(map[string]any{"spec": "chara_card_v3", "data": map[string]any{"name": "Alice"}}),
		Assets: []model.ResolvedAsset{
			{FinalFilename: "icon.png", Bytes: []byte("icon"), OriginalIndex: 0},
			{FinalFilename: "icon_3.png", Bytes: []byte("other"), OriginalIndex: 3},
		},
		Declared: 3,
		Found:    2,
		Renamed:  1,
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "card", BaseName("/in/card.png"))
	assert.Equal(t, "card.v2", BaseName("card.v2.charx"))
	assert.Equal(t, "noext", BaseName("dir/noext"))
	assert.Equal(t, ".hidden", BaseName(".hidden"))
}

func TestNames(t *testing.T) {
	tests := []struct {
		name       string
		kind       model.ContainerKind
		moduleName string
		mode       model.NamingMode
		want       string
	}{
		{"card by name", model.KindImage, "", model.NamingByName, "alice_assets_by_name"},
		{"card numbered", model.KindArchive, "", model.NamingNumbered, "alice_assets_numbered"},
		{"module", model.KindModule, "Scenery Pack", model.NamingByName, "Scenery Pack_assets"},
		{"module unsafe name", model.KindModule, "a/b", model.NamingNumbered, "a_b_assets"},
		{"module without name", model.KindModule, "", model.NamingByName, "alice_assets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssetsName(tt.kind, "alice", tt.moduleName, tt.mode))
		})
	}

	assert.Equal(t, "alice_metadata.json", MetadataName(model.KindImage, "alice"))
	assert.Equal(t, "alice_structure.json", MetadataName(model.KindModule, "alice"))
	assert.Equal(t, "alice_report.yaml", ReportName("alice"))
}

// TestWrite_Zip verifies the archive keeps asset order and names.
func TestWrite_Zip(t *testing.T) {
	dir := t.TempDir()

	w, err := Write(sampleResult(), "/cards/alice.png", Options{Dir: dir, Zip: true, ExportMetadata: true})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "alice_assets_by_name.zip"), w.Assets)
	data, err := os.ReadFile(w.Assets)
	require.NoError(t, err)

	zr, err := archive.Open(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"icon.png", "icon_3.png"}, zr.Names())

	got, ok, err := zr.ReadEntry("icon_3.png")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("other"), got)

	meta, err := os.ReadFile(w.Metadata)
	require.NoError(t, err)
	assert.Contains(t, string(meta), "\n  \"data\"", "two-space indentation")
	assert.Empty(t, w.Report)
}

// TestWrite_Dir verifies loose-file output.
func TestWrite_Dir(t *testing.T) {
	dir := t.TempDir()

	w, err := Write(sampleResult(), "alice.png", Options{Dir: dir, Naming: model.NamingByName})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(w.Assets, "icon.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("icon"), got)
	assert.Empty(t, w.Metadata, "metadata export disabled")
}

// TestWrite_DirKeepsExisting verifies that loose-file output never
// overwrites a file already in the asset directory.
func TestWrite_DirKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	assetsDir := filepath.Join(dir, "alice_assets_by_name")
	require.NoError(t, os.MkdirAll(assetsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assetsDir, "ICON.png"), []byte("mine"), 0o644))

	res := sampleResult()
	w, err := Write(res, "alice.png", Options{Dir: dir, Naming: model.NamingByName})
	require.NoError(t, err)
	assert.Equal(t, 1, w.Renamed)

	kept, err := os.ReadFile(filepath.Join(assetsDir, "ICON.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("mine"), kept)

	got, err := os.ReadFile(filepath.Join(assetsDir, "icon_0.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("icon"), got)
	assert.Equal(t, "icon_0.png", res.Assets[0].FinalFilename)
	assert.Equal(t, "icon_3.png", res.Assets[1].FinalFilename)
}

// TestWrite_RejectsEscapingNames verifies that neither output mode writes
// an asset whose name leaves the output directory.
func TestWrite_RejectsEscapingNames(t *testing.T) {
	for _, name := range []string{"icon.png/../../../escaped", "../up.png", `..\up.png`, "/abs.png", ""} {
		for _, zip := range []bool{true, false} {
			root := t.TempDir()
			out := filepath.Join(root, "out")
			res := &extract.Result{
				Kind:     model.KindImage,
				Metadata: model.AbsentMetadata(),
				Assets:   []model.ResolvedAsset{{FinalFilename: name, Bytes: []byte("x")}},
			}

			_, err := Write(res, "alice.png", Options{Dir: out, Zip: zip})
			require.Error(t, err, "name %q zip=%v", name, zip)

			_, err = os.Stat(filepath.Join(root, "escaped"))
			assert.True(t, os.IsNotExist(err))
			_, err = os.Stat(filepath.Join(root, "up.png"))
			assert.True(t, os.IsNotExist(err))
		}
	}
}

// TestWrite_OpaqueMetadata verifies the note/raw_data export.
func TestWrite_OpaqueMetadata(t *testing.T) {
	dir := t.TempDir()
	res := &extract.Result{
		Kind:     model.KindImage,
		Metadata: model.OpaqueMetadata("rcc||abc", model.OpaqueEncrypted),
	}

	w, err := Write(res, "secret.png", Options{Dir: dir, Zip: true, ExportMetadata: true})
	require.NoError(t, err)
	assert.Empty(t, w.Assets, "no assets, no archive")

	raw, err := os.ReadFile(w.Metadata)
	require.NoError(t, err)
	var doc map[string]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "rcc||abc", doc["raw_data"])
	assert.NotEmpty(t, doc["note"])
}

// TestWrite_Report verifies the YAML run report and its header.
func TestWrite_Report(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	dir := t.TempDir()
	w, err := Write(sampleResult(), "alice.png", Options{Dir: dir, Zip: true, Report: true})
	require.NoError(t, err)

	raw, err := os.ReadFile(w.Report)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "# Generated by risu-extract"))

	var r Report
	require.NoError(t, yaml.Unmarshal(raw, &r))
	assert.Equal(t, "alice.png", r.Source)
	assert.Equal(t, "2026-01-02T03:04:05Z", r.GeneratedAt)
	assert.Equal(t, "structured", r.Metadata)
	assert.Equal(t, 3, r.Declared)
	assert.Equal(t, 2, r.Found)
	assert.Equal(t, []string{"alice_assets_by_name.zip", "alice_report.yaml"}, r.Outputs)
	require.Len(t, r.Assets, 2)
	assert.Equal(t, ReportAsset{File: "icon_3.png", Index: 3, Size: 5}, r.Assets[1])
}

func TestWriteFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c.json")

	require.NoError(t, WriteFile(path, []byte("{}")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

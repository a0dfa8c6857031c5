package output

import (
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/naming"
)

// BaseName returns the input file name without directory and without its
// last extension: "/in/card.v2.png" → "card.v2".
func BaseName(sourcePath string) string {
	name := filepath.Base(sourcePath)
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// AssetsName returns the archive (or directory) name for the assets,
// without the ".zip" suffix.
//
// Modules are named after module.name when present; cards after the input
// file and the naming mode.
func AssetsName(kind model.ContainerKind, base, moduleName string, mode model.NamingMode) string {
	if kind == model.KindModule {
		if n := naming.SanitizeComponent(moduleName); n != "" {
			return n + "_assets"
		}
		return base + "_assets"
	}
	if mode == model.NamingNumbered {
		return base + "_assets_numbered"
	}
	return base + "_assets_by_name"
}

// MetadataName returns the metadata export file name. Module manifests are
// exported as "structure", card metadata as "metadata".
func MetadataName(kind model.ContainerKind, base string) string {
	if kind == model.KindModule {
		return base + "_structure.json"
	}
	return base + "_metadata.json"
}

// ReportName returns the YAML run report file name.
func ReportName(base string) string {
	return base + "_report.yaml"
}

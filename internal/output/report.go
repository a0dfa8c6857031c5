package output

import (
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/risu-extract/internal/extract"
)

// Report is the YAML summary of one extraction run.
type Report struct {
	Source      string        `yaml:"source"`
	RunID       string        `yaml:"run_id"`
	GeneratedAt string        `yaml:"generated_at"`
	Kind        string        `yaml:"kind"`
	ModuleName  string        `yaml:"module_name,omitempty"`
	Metadata    string        `yaml:"metadata"`
	Declared    int           `yaml:"declared"`
	Found       int           `yaml:"found"`
	Renamed     int           `yaml:"renamed"`
	Outputs     []string      `yaml:"outputs,omitempty"`
	Assets      []ReportAsset `yaml:"assets"`
}

// ReportAsset is one resolved asset in a Report.
type ReportAsset struct {
	File  string `yaml:"file"`
	Index int    `yaml:"index"`
	Size  int    `yaml:"size"`
}

// now is replaced in tests.
var now = time.Now

// NewReport builds a Report for res. written may be nil.
func NewReport(res *extract.Result, sourcePath string, written *Written) Report {
	r := Report{
		Source:      filepath.Base(sourcePath),
		RunID:       res.RunID,
		GeneratedAt: now().UTC().Format(time.RFC3339),
		Kind:        res.Kind.String(),
		ModuleName:  res.ModuleName,
		Metadata:    "absent",
		Declared:    res.Declared,
		Found:       res.Found,
		Renamed:     res.Renamed,
		Assets:      make([]ReportAsset, 0, len(res.Assets)),
	}
	if res.Metadata != nil {
		r.Metadata = string(res.Metadata.State)
		if res.Metadata.Reason != "" {
			r.Metadata += " (" + string(res.Metadata.Reason) + ")"
		}
	}
	if written != nil {
		for _, p := range written.Paths() {
			r.Outputs = append(r.Outputs, filepath.Base(p))
		}
	}
	for _, a := range res.Assets {
		r.Assets = append(r.Assets, ReportAsset{File: a.FinalFilename, Index: a.OriginalIndex, Size: a.Size()})
	}
	return r
}

// GenerateReport renders the YAML run report, prefixed with a header
// comment naming the source file.
func GenerateReport(res *extract.Result, sourcePath string, written *Written) ([]byte, error) {
	r := NewReport(res, sourcePath, written)
	body, err := yaml.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize run report: %w", err)
	}
	header := fmt.Sprintf("# Generated by risu-extract from %q\n", r.Source)
	return []byte(header + string(body)), nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/risu-extract/internal/extract"
)

// inspectFlags holds the flag values for the inspect command.
type inspectFlags struct {
	extractFlags
}

// NewInspectCommand creates the "inspect" cobra command. It runs the full
// pipeline but writes nothing.
func NewInspectCommand() *cobra.Command {
	flags := &inspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show what a file contains without extracting it",
		Long: `Classify and parse a file, then print its container kind, metadata
state, declared and found asset counts, and the names the assets would
be written under.

Examples:
  risu-extract inspect card.png
  risu-extract inspect --json pack.risum`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(&flags.extractFlags, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return runInspect(cmd, args[0], s)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.naming, "naming", "name", "Asset file naming: name or numbered")
	f.StringVar(&flags.kind, "kind", "", "Force the container kind: image, archive or module")
	f.StringVar(&flags.codec, "codec", "rpack", "Module codec")
	f.StringVar(&flags.rpackMap, "rpack-map", "", "Path to the 256-byte rpack substitution table")
	f.BoolVar(&flags.extendedSniff, "extended-sniff", false, "Infer more file types for assets without an extension")
	return cmd
}

func runInspect(cmd *cobra.Command, path string, s *settings) error {
	codecs := newCodecCache(s)
	defer codecs.Close()

	res, err := extractBytes(cmd.Context(), path, s, codecs, newLogger(os.Stderr))
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printInspectJSON(cmd.OutOrStdout(), path, res)
	}
	printInspectText(cmd.OutOrStdout(), path, res)
	return nil
}

// inspectJSON is the JSON output structure of the inspect command.
type inspectJSON struct {
	File        string            `json:"file"`
	RunID       string            `json:"runId"`
	Kind        string            `json:"kind"`
	ModuleName  string            `json:"moduleName,omitempty"`
	Spec        string            `json:"spec,omitempty"`
	Metadata    string            `json:"metadata"`
	Declared    int               `json:"declared"`
	Found       int               `json:"found"`
	Descriptors int               `json:"descriptors"`
	Renamed     int               `json:"renamed"`
	Assets      []inspectAssetRow `json:"assets"`
}

type inspectAssetRow struct {
	Index int    `json:"index"`
	File  string `json:"file"`
	Size  int    `json:"size"`
}

func buildInspectJSON(path string, res *extract.Result) inspectJSON {
	out := inspectJSON{
		File:        path,
		RunID:       res.RunID,
		Kind:        res.Kind.String(),
		ModuleName:  res.ModuleName,
		Spec:        res.Metadata.Spec(),
		Metadata:    "absent",
		Declared:    res.Declared,
		Found:       res.Found,
		Descriptors: len(res.Descriptors),
		Renamed:     res.Renamed,
		Assets:      make([]inspectAssetRow, 0, len(res.Assets)),
	}
	if res.Metadata != nil {
		out.Metadata = string(res.Metadata.State)
	}
	for _, a := range res.Assets {
		out.Assets = append(out.Assets, inspectAssetRow{Index: a.OriginalIndex, File: a.FinalFilename, Size: a.Size()})
	}
	return out
}

func printInspectJSON(w io.Writer, path string, res *extract.Result) error {
	data, err := json.MarshalIndent(buildInspectJSON(path, res), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printInspectText(w io.Writer, path string, res *extract.Result) {
	info := buildInspectJSON(path, res)

	fmt.Fprintln(w, styles.Title.Render(path))
	fmt.Fprintf(w, "  Kind:        %s\n", info.Kind)
	if info.ModuleName != "" {
		fmt.Fprintf(w, "  Module:      %s\n", info.ModuleName)
	}
	if info.Spec != "" {
		fmt.Fprintf(w, "  Spec:        %s\n", info.Spec)
	}
	meta := info.Metadata
	if res.Metadata != nil && res.Metadata.Reason != "" {
		meta += " (" + string(res.Metadata.Reason) + ")"
	}
	fmt.Fprintf(w, "  Metadata:    %s\n", meta)
	fmt.Fprintf(w, "  Declared:    %d\n", info.Declared)
	fmt.Fprintf(w, "  Found:       %d\n", info.Found)
	fmt.Fprintf(w, "  Descriptors: %d\n", info.Descriptors)

	if len(res.Assets) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("  nothing found"))
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-6s %-40s %s\n", "INDEX", "FILE", "SIZE")
	var total uint64
	for _, a := range info.Assets {
		fmt.Fprintf(w, "  %-6d %-40s %s\n", a.Index, a.File, humanize.Bytes(uint64(a.Size)))
		total += uint64(a.Size)
	}
	fmt.Fprintf(w, "\n  %d assets, %s total\n", len(info.Assets), humanize.Bytes(total))

	if notice := renamedNotice(res.Renamed); notice != "" {
		fmt.Fprintln(w, "  "+styles.Warning.Render(notice))
	}
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/risu-extract/internal/extract"
	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/output"
	"github.com/shinji-kodama/risu-extract/internal/rpack"
)

// NewExtractCommand creates the "extract" cobra command.
func NewExtractCommand() *cobra.Command {
	flags := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "extract <file>...",
		Short: "Extract assets and metadata from one or more files",
		Long: `Extract every resolvable asset and the metadata of each input file.

The container kind is detected from the file contents (.png and .charx)
or the .risum extension; --kind overrides detection.

Examples:
  risu-extract extract card.png
  risu-extract extract --naming numbered --no-zip -o out/ card.charx
  risu-extract extract --rpack-map ~/rpack.bin pack.risum`,

		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(flags, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return runExtract(cmd.Context(), cmd.OutOrStdout(), args, s)
		},
	}

	addExtractFlags(cmd, flags)
	return cmd
}

// addExtractFlags registers the extraction flags. Defaults shown here are
// only used for help output; unset flags fall back to the config file.
func addExtractFlags(cmd *cobra.Command, flags *extractFlags) {
	f := cmd.Flags()
	f.StringVarP(&flags.out, "out", "o", ".", "Output directory")
	f.StringVar(&flags.naming, "naming", "name", "Asset file naming: name or numbered")
	f.BoolVar(&flags.zip, "zip", true, "Pack assets into a ZIP archive")
	f.BoolVar(&flags.noZip, "no-zip", false, "Write assets as loose files into a directory")
	f.StringVar(&flags.kind, "kind", "", "Force the container kind: image, archive or module")
	f.StringVar(&flags.codec, "codec", rpack.NameRPack, "Module codec: "+strings.Join(rpack.Names(), ", "))
	f.StringVar(&flags.rpackMap, "rpack-map", "", "Path to the 256-byte rpack substitution table")
	f.BoolVar(&flags.noMetadata, "no-metadata", false, "Do not write the metadata/structure JSON")
	f.BoolVar(&flags.report, "report", false, "Write a YAML run report per input")
	f.BoolVar(&flags.extendedSniff, "extended-sniff", false, "Infer more file types for assets without an extension")
	f.IntVar(&flags.workers, "workers", 0, "Parallel decoders (0 = number of CPUs)")
	cmd.MarkFlagsMutuallyExclusive("zip", "no-zip")
}

// fileResult is the outcome of extracting one input file.
type fileResult struct {
	Path    string
	Result  *extract.Result
	Written *output.Written
	Err     error
}

// runExtract extracts every file in order. A failing file does not stop
// the others; the first error is returned after all files are processed
// so the exit code reflects it.
func runExtract(ctx context.Context, w io.Writer, paths []string, s *settings) error {
	codecs := newCodecCache(s)
	defer codecs.Close()

	log := newLogger(os.Stderr)

	results := make([]fileResult, 0, len(paths))
	var firstErr error
	for _, p := range paths {
		fr := extractFile(ctx, p, s, codecs, log)
		if fr.Err != nil && firstErr == nil {
			firstErr = fr.Err
		}
		results = append(results, fr)
		// A single failing file is reported once, by Execute.
		if !IsJSONOutput() && (fr.Err == nil || len(paths) > 1) {
			printFileResultText(w, fr)
		}
	}

	if IsJSONOutput() {
		if err := printResultsJSON(w, results); err != nil {
			return err
		}
	}
	if firstErr != nil && len(paths) > 1 {
		return model.WrapCLIError(model.ExitCodeFor(firstErr),
			fmt.Sprintf("%d of %d files failed", countFailed(results), len(paths)), firstErr)
	}
	return firstErr
}

// extractFile reads, extracts and writes one input.
func extractFile(ctx context.Context, path string, s *settings, codecs *codecCache, log *slog.Logger) fileResult {
	fr := fileResult{Path: path}

	res, err := extractBytes(ctx, path, s, codecs, log)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Result = res

	written, err := output.Write(res, path, output.Options{
		Dir:            s.outputDir,
		Zip:            s.zip,
		ExportMetadata: s.exportMetadata,
		Report:         s.report,
		Naming:         s.naming,
	})
	if err != nil {
		fr.Err = fmt.Errorf("failed to write outputs for %s: %w", path, err)
		return fr
	}
	fr.Written = written
	return fr
}

// extractBytes reads path and runs the pipeline without writing outputs.
// The module codec is only opened when the input is a module.
func extractBytes(ctx context.Context, path string, s *settings, codecs *codecCache, log *slog.Logger) (*extract.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	VerboseLog("Read %s (%d bytes)", path, len(data))

	kind, err := extract.ResolveKind(data, s.kind, path)
	if err != nil {
		return nil, fmt.Errorf("%s: not a recognized container: %w", path, err)
	}

	opts := extract.Options{
		Kind:          kind,
		SourceName:    path,
		Naming:        s.naming,
		ExtendedSniff: s.extendedSniff,
		Workers:       s.workers,
		Logger:        log.With("file", path),
	}
	if kind == model.KindModule {
		codec, err := codecs.get()
		if err != nil {
			return nil, err
		}
		opts.Decompressor = codec
	}

	res, err := extract.Run(ctx, data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func countFailed(results []fileResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// statusLine summarizes a successful result in one line.
func statusLine(res *extract.Result) string {
	if res.Empty() {
		return "nothing found"
	}

	var b strings.Builder
	switch {
	case res.Kind == model.KindModule:
		name := res.ModuleName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "module %q: %d of %d assets extracted", name, res.Found, res.Declared)
	case res.Declared > 0:
		fmt.Fprintf(&b, "%s: %d assets extracted (found %d of %d declared)", res.Kind, len(res.Assets), res.Found, res.Declared)
	default:
		fmt.Fprintf(&b, "%s: %d assets extracted", res.Kind, len(res.Assets))
	}
	if res.Metadata != nil && res.Metadata.State == model.MetadataOpaque {
		fmt.Fprintf(&b, ", metadata opaque (%s)", res.Metadata.Reason)
	}
	return b.String()
}

// renamedNotice explains collision suffixes, or returns "" when nothing
// was renamed.
func renamedNotice(renamed int) string {
	if renamed == 0 {
		return ""
	}
	return fmt.Sprintf("note: %d asset name(s) collided and got a suffix like name_123.png; "+
		"the number is the asset's original index, not a sequence", renamed)
}

func printFileResultText(w io.Writer, fr fileResult) {
	if fr.Err != nil {
		fmt.Fprintln(w, styles.Error.Render("✗ "+fr.Path+": "+fr.Err.Error()))
		return
	}

	fmt.Fprintf(w, "%s %s\n", styles.Success.Render("✓ "+fr.Path), statusLine(fr.Result))
	if notice := renamedNotice(fr.Result.Renamed); notice != "" {
		fmt.Fprintln(w, "  "+styles.Warning.Render(notice))
	}
	if fr.Written != nil {
		if fr.Written.Renamed > 0 {
			fmt.Fprintln(w, "  "+styles.Warning.Render(fmt.Sprintf(
				"note: %d file(s) already existed in %s and were kept; new copies got an index suffix",
				fr.Written.Renamed, fr.Written.Assets)))
		}
		for _, p := range fr.Written.Paths() {
			fmt.Fprintln(w, "  "+styles.Muted.Render("→ "+p))
		}
	}
}

// fileResultJSON is the JSON output structure for one input file.
type fileResultJSON struct {
	File       string   `json:"file"`
	Error      string   `json:"error,omitempty"`
	RunID      string   `json:"runId,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	ModuleName string   `json:"moduleName,omitempty"`
	Metadata   string   `json:"metadata,omitempty"`
	Declared   int      `json:"declared"`
	Found      int      `json:"found"`
	Extracted  int      `json:"extracted"`
	Renamed    int      `json:"renamed"`
	Outputs    []string `json:"outputs"`
}

func toFileResultJSON(fr fileResult) fileResultJSON {
	out := fileResultJSON{File: fr.Path, Outputs: []string{}}
	if fr.Err != nil {
		out.Error = fr.Err.Error()
		return out
	}
	res := fr.Result
	out.RunID = res.RunID
	out.Kind = res.Kind.String()
	out.ModuleName = res.ModuleName
	if res.Metadata != nil {
		out.Metadata = string(res.Metadata.State)
	}
	out.Declared = res.Declared
	out.Found = res.Found
	out.Extracted = len(res.Assets)
	out.Renamed = res.Renamed
	if fr.Written != nil {
		out.Outputs = append(out.Outputs, fr.Written.Paths()...)
	}
	return out
}

func printResultsJSON(w io.Writer, results []fileResult) error {
	type resultJSON struct {
		Files []fileResultJSON `json:"files"`
	}
	out := resultJSON{Files: make([]fileResultJSON, 0, len(results))}
	for _, fr := range results {
		out.Files = append(out.Files, toFileResultJSON(fr))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

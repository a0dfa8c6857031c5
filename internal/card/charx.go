package card

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/shinji-kodama/risu-extract/internal/archive"
	"github.com/shinji-kodama/risu-extract/internal/manifest"
	"github.com/shinji-kodama/risu-extract/internal/model"
)

// ManifestEntry is the archive entry holding the card manifest.
const ManifestEntry = "card.json"

// ParseArchive parses a .charx character card.
//
// The archive must contain card.json (model.ErrMissingManifest otherwise)
// holding a UTF-8 JSON object (model.ErrMalformedManifest otherwise).
// Descriptors come from data.assets only. Each uri is resolved to an
// archive entry (embed scheme stripped, plain relative paths as-is);
// entries that are missing or use another scheme are skipped. An entry
// without an index in its uri takes the next index after the descriptors
// kept so far. Entries are read in parallel and their bytes stay bound
// to their own descriptor in Result.Bound.
func ParseArchive(ctx context.Context, data []byte, opts Options) (*Result, error) {
	log := opts.logger()

	zr, err := archive.Open(data)
	if err != nil {
		return nil, err
	}

	raw, ok, err := zr.ReadEntry(ManifestEntry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedManifest, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no %s in archive", model.ErrMissingManifest, ManifestEntry)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", model.ErrMalformedManifest, ManifestEntry)
	}

	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrMalformedManifest, ManifestEntry, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: %s is not a JSON object", model.ErrMalformedManifest, ManifestEntry)
	}

	res := &Result{Metadata: model.StructuredMetadata(tree)}
	d := res.Metadata.Data()
	if d == nil {
		log.Debug("manifest has no data subtree")
		return res, nil
	}
	for _, desc := range manifest.Normalize(manifest.Candidates(d, manifest.SectionAssets)) {
		if desc.Locator.Kind != model.LocatorArchive {
			log.Debug("asset is not stored in the archive", "index", desc.Index, "name", desc.DisplayName)
			continue
		}
		if !zr.Has(desc.Locator.ArchivePath) {
			log.Debug("archive entry not found", "path", desc.Locator.ArchivePath)
			continue
		}
		if desc.Synthetic {
			desc.Index = len(res.Descriptors)
		}
		res.Descriptors = append(res.Descriptors, desc)
	}

	bound, err := readEntries(ctx, zr, res.Descriptors, opts)
	if err != nil {
		return nil, err
	}
	res.Bound = bound
	log.Debug("parsed archive container",
		"entries", len(zr.Names()),
		"descriptors", len(res.Descriptors))
	return res, nil
}

// readEntries reads the entry of every descriptor in parallel. The result
// is aligned with descs.
func readEntries(ctx context.Context, zr *archive.Reader, descs []model.AssetDescriptor, opts Options) ([][]byte, error) {
	found := make([][]byte, len(descs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, desc := range descs {
		i, desc := i, desc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, ok, err := zr.ReadEntry(desc.Locator.ArchivePath)
			if err != nil {
				return fmt.Errorf("%w: %v", model.ErrCorruptPayload, err)
			}
			if !ok {
				return fmt.Errorf("%w: entry %s vanished", model.ErrCorruptPayload, desc.Locator.ArchivePath)
			}
			if b == nil {
				b = []byte{}
			}
			found[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

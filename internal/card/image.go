package card

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/shinji-kodama/risu-extract/internal/manifest"
	"github.com/shinji-kodama/risu-extract/internal/model"
	"github.com/shinji-kodama/risu-extract/internal/pngchunk"
)

const (
	// keyChara and keyCCv3 carry the main metadata string.
	keyChara = "chara"
	keyCCv3  = "ccv3"

	// assetKeyPrefix precedes the numeric asset index in asset chunk keys.
	assetKeyPrefix = "chara-ext-asset_"

	// encryptedPrefix marks metadata that is never decoded.
	encryptedPrefix = "rcc||"
)

// textEntry is one decoded tEXt chunk.
type textEntry struct {
	key   string
	value string
}

// pendingAsset is an asset chunk whose base64 value has not been decoded
// yet. seq is its position among asset chunks in stream order.
type pendingAsset struct {
	seq   int
	index int
	value string
}

// ParseImage parses a PNG character card.
//
// Only tEXt chunks are inspected. Chunks that are not valid UTF-8, asset
// chunks with a non-numeric index and asset chunks whose value is not
// valid base64 are skipped with a warning. The only fatal error is a
// malformed PNG chunk structure (model.ErrMalformedContainer).
//
// Asset values are base64-decoded in parallel; the results are merged in
// stream order so a later chunk for the same index wins.
func ParseImage(ctx context.Context, data []byte, opts Options) (*Result, error) {
	log := opts.logger()

	chunks, err := pngchunk.Split(data)
	if err != nil {
		return nil, err
	}

	var (
		mainRaw    string
		pending    []pendingAsset
		textChunks int
	)
	for _, c := range chunks {
		if c.Type != pngchunk.TypeText {
			continue
		}
		textChunks++

		entry, ok := decodeText(c.Data)
		if !ok {
			log.Warn("skipping tEXt chunk that is not valid UTF-8", "chunk", textChunks-1)
			continue
		}

		switch {
		case entry.key == keyChara || entry.key == keyCCv3:
			mainRaw = entry.value
		case strings.HasPrefix(entry.key, assetKeyPrefix):
			idx, ok := assetIndex(entry.key)
			if !ok {
				log.Warn("skipping asset chunk with non-numeric index", "key", entry.key)
				continue
			}
			pending = append(pending, pendingAsset{seq: len(pending), index: idx, value: entry.value})
		default:
			log.Debug("ignoring tEXt chunk", "key", entry.key)
		}
	}

	payloads, err := decodeAssets(ctx, pending, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Metadata: model.AbsentMetadata(),
		Payloads: payloads,
	}
	// The last main chunk wins; an empty value means no metadata.
	if mainRaw != "" {
		res.Metadata = DecodeMainMetadata(mainRaw)
		if res.Metadata.State == model.MetadataOpaque {
			log.Warn("main metadata is opaque", "reason", string(res.Metadata.Reason))
		}
	}

	if d := res.Metadata.Data(); d != nil && len(payloads) > 0 {
		res.Descriptors = manifest.Normalize(manifest.Candidates(d, manifest.CardSections...))
	}
	log.Debug("parsed image container",
		"text_chunks", textChunks,
		"payloads", len(payloads),
		"descriptors", len(res.Descriptors))
	return res, nil
}

// decodeText validates a tEXt chunk as strict UTF-8 and splits it at the
// first NUL byte. A chunk without a NUL has an empty value.
func decodeText(b []byte) (textEntry, bool) {
	if !utf8.Valid(b) {
		return textEntry{}, false
	}
	key, value, _ := bytes.Cut(b, []byte{0})
	return textEntry{key: string(key), value: string(value)}, true
}

// assetIndex parses the index out of "chara-ext-asset_<n>" or
// "chara-ext-asset_:<n>".
func assetIndex(key string) (int, bool) {
	rest := strings.TrimPrefix(key, assetKeyPrefix)
	rest = strings.TrimPrefix(rest, ":")
	if rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// decodeAssets base64-decodes every pending asset with bounded
// parallelism, then merges the results in stream order.
func decodeAssets(ctx context.Context, pending []pendingAsset, opts Options) (map[int][]byte, error) {
	decoded := make([][]byte, len(pending))
	failed := make([]error, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, p := range pending {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := decodeBase64(p.value)
			if err != nil {
				failed[i] = err
				return nil
			}
			decoded[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log := opts.logger()
	payloads := make(map[int][]byte, len(pending))
	for i, p := range pending {
		if failed[i] != nil {
			log.Warn("skipping asset chunk with invalid base64", "index", p.index, "error", failed[i])
			continue
		}
		if _, dup := payloads[p.index]; dup {
			log.Debug("asset chunk overrides earlier payload", "index", p.index, "seq", p.seq)
		}
		payloads[p.index] = decoded[i]
	}
	return payloads, nil
}

// decodeBase64 accepts both padded and unpadded standard base64, ignoring
// surrounding whitespace.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	return b, nil
}

// DecodeMainMetadata decodes a main metadata string.
//
// An "rcc||" prefix yields an opaque encrypted document. Anything else is
// base64-decoded, checked as UTF-8 and parsed as a JSON object; a failure
// at any step yields an opaque parse-failure document carrying raw.
func DecodeMainMetadata(raw string) *model.MetadataDocument {
	if strings.HasPrefix(raw, encryptedPrefix) {
		return model.OpaqueMetadata(raw, model.OpaqueEncrypted)
	}

	b, err := decodeBase64(raw)
	if err != nil || !utf8.Valid(b) {
		return model.OpaqueMetadata(raw, model.OpaqueParseFailure)
	}

	var tree map[string]any
	if err := json.Unmarshal(b, &tree); err != nil || tree == nil {
		return model.OpaqueMetadata(raw, model.OpaqueParseFailure)
	}
	return model.StructuredMetadata(tree)
}

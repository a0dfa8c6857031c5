// Package manifest normalizes the asset lists of character-card and
// module manifests into a uniform []model.AssetDescriptor.
//
// Three entry shapes occur in the wild:
//
//   - Object entries ({"uri", "name", "ext"}) from chara_card_v3 data.assets
//     and .charx card.json files.
//   - Tuple entries ([path, uri, ext?]) from the legacy risuai extension
//     lists (additionalAssets, emotions).
//   - Module tuples ([assetId, _, mimeType]) from module.assets, which are
//     correlated with payload records by position rather than by URI.
//
// Each entry is classified once (Classify) and normalized by the branch
// for its shape. Entries matching no shape are skipped.
package manifest

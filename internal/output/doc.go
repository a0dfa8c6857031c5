// Package output writes the results of an extraction run to disk.
//
// For every input file it can produce:
//   - the resolved assets, either as one ZIP archive or as a directory
//   - the metadata export (pretty-printed JSON, opaque documents included)
//   - an optional YAML run report
//
// Output names follow the conventions users already know from the
// browser-based extractors ("<base>_assets_by_name.zip",
// "<module>_assets.zip", "<base>_metadata.json", "<base>_structure.json").
package output

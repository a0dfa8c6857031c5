// Package model defines the domain types and value objects for the
// risu-extract CLI.
//
// This package contains pure data structures with no external dependencies.
// All entities (MetadataDocument, AssetDescriptor, AssetPayload,
// ResolvedAsset) are created fresh for one extraction run and discarded
// when that run ends. There is no persistent state between runs.
//
// The package also defines the error taxonomy (errors.go), exit codes
// (ExitCode) and a custom error type (CLIError) that carries exit codes for
// proper OS process exit handling.
package model

package model

import (
	"fmt"
	"strings"
)

// ContainerKind identifies the outer file format of an input.
// Classification happens exactly once per run and is never revised.
type ContainerKind string

const (
	// KindImage is a PNG carrying tEXt metadata and asset chunks
	// (a "character card" image).
	KindImage ContainerKind = "image"

	// KindArchive is a ZIP archive with a card.json manifest (.charx).
	KindArchive ContainerKind = "archive"

	// KindModule is the custom length-prefixed binary container (.risum).
	KindModule ContainerKind = "module"
)

// String returns the string representation of ContainerKind.
func (k ContainerKind) String() string {
	return string(k)
}

// IsValid checks whether the ContainerKind value is one of the
// predefined kinds.
func (k ContainerKind) IsValid() bool {
	switch k {
	case KindImage, KindArchive, KindModule:
		return true
	default:
		return false
	}
}

// ParseContainerKind converts a string to a ContainerKind.
// Returns an error if the string does not match any valid kind.
func ParseContainerKind(s string) (ContainerKind, error) {
	kind := ContainerKind(strings.ToLower(s))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid container kind: %q (valid: image, archive, module)", s)
	}
	return kind, nil
}

// NamingMode selects how final output filenames are built.
type NamingMode string

const (
	// NamingByName uses the declared asset name, adding an index suffix
	// only when a case-insensitive collision occurs.
	NamingByName NamingMode = "name"

	// NamingNumbered always prefixes the asset index: "<index>_<name>".
	NamingNumbered NamingMode = "numbered"
)

// String returns the string representation of NamingMode.
func (m NamingMode) String() string {
	return string(m)
}

// IsValid checks whether the NamingMode value is one of the predefined modes.
func (m NamingMode) IsValid() bool {
	return m == NamingByName || m == NamingNumbered
}

// ParseNamingMode converts a string to a NamingMode.
func ParseNamingMode(s string) (NamingMode, error) {
	mode := NamingMode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid naming mode: %q (valid: name, numbered)", s)
	}
	return mode, nil
}

// LocatorKind tags which field of a SourceLocator is meaningful.
type LocatorKind int

const (
	// LocatorEmbedded points at a payload by numeric index (PNG asset
	// chunks and module records).
	LocatorEmbedded LocatorKind = iota

	// LocatorArchive points at a named entry inside a ZIP container.
	LocatorArchive
)

// SourceLocator says where the bytes for a descriptor physically live.
// Exactly one of EmbeddedIndex / ArchivePath is meaningful, chosen by Kind.
type SourceLocator struct {
	Kind          LocatorKind
	EmbeddedIndex int
	ArchivePath   string
}

// String renders the locator for logs and the inspect command.
func (l SourceLocator) String() string {
	if l.Kind == LocatorArchive {
		return "archive:" + l.ArchivePath
	}
	return fmt.Sprintf("embedded:%d", l.EmbeddedIndex)
}

// AssetDescriptor is one manifest-declared asset reference, prior to
// correlation with a payload.
//
// The same Index may appear more than once in a descriptor list; the list
// order is kept as-is because it drives output ordering and the
// first-wins rule of the namer.
type AssetDescriptor struct {
	// Index is the payload key this descriptor correlates with (>= 0).
	Index int `json:"index"`

	// Synthetic is true when Index could not be recovered from the URI.
	// Image cards then use the position in the candidate list; archive
	// cards use the next index after the descriptors kept so far.
	Synthetic bool `json:"synthetic,omitempty"`

	// DisplayName is the logical asset name from the manifest.
	DisplayName string `json:"name"`

	// ExtensionHint is the declared extension without a leading dot.
	// Empty means the manifest did not declare one.
	ExtensionHint string `json:"ext,omitempty"`

	// Locator says where the payload lives in the container.
	Locator SourceLocator `json:"-"`
}

// AssetPayload is one physical asset blob keyed by index.
type AssetPayload struct {
	Index int
	Bytes []byte
}

// ResolvedAsset is a descriptor matched to a payload, with its final,
// run-unique filename. It is the unit handed to the output layer.
type ResolvedAsset struct {
	FinalFilename string `json:"filename"`
	Bytes         []byte `json:"-"`
	OriginalIndex int    `json:"index"`
}

// Size returns the payload length in bytes.
func (a ResolvedAsset) Size() int {
	return len(a.Bytes)
}

// ExitCode defines standard CLI exit codes.
// These codes allow scripts to tell apart the different fatal outcomes
// of an extraction run.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully, including
	// runs that found nothing to extract.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitUnsupportedFormat indicates the input is neither a PNG nor a
	// readable archive.
	ExitUnsupportedFormat ExitCode = 2

	// ExitMalformedContainer indicates the chunk or archive layer could
	// not be parsed.
	ExitMalformedContainer ExitCode = 3

	// ExitManifestError indicates card.json is missing or malformed.
	ExitManifestError ExitCode = 4

	// ExitModuleHeader indicates a module container with a bad magic byte
	// or an unsupported version.
	ExitModuleHeader ExitCode = 5

	// ExitCorruptPayload indicates a payload failed to decompress.
	ExitCorruptPayload ExitCode = 6

	// ExitConfigError indicates the configuration file or flags are invalid.
	ExitConfigError ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

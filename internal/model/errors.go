package model

import "errors"

// Fatal error taxonomy for one extraction run. Parsers wrap these with
// context via fmt.Errorf("...: %w", ErrX); callers match with errors.Is.
//
// Per-item problems (a tEXt chunk that is not UTF-8, unparseable main
// metadata, an unrecognised manifest entry, a missing archive entry) are
// not errors at all: they are logged and skipped.
var (
	// ErrUnsupportedFormat means sniffing failed: the input is neither a
	// PNG nor an openable archive.
	ErrUnsupportedFormat = errors.New("unsupported format: not a recognized container")

	// ErrMalformedContainer means the chunk or archive layer is broken.
	ErrMalformedContainer = errors.New("malformed container")

	// ErrMissingManifest means an archive container has no card.json.
	ErrMissingManifest = errors.New("missing manifest: card.json not found")

	// ErrMalformedManifest means a manifest is not valid UTF-8 JSON.
	ErrMalformedManifest = errors.New("malformed manifest")

	// ErrBadMagic means a module container does not start with 0x6F.
	ErrBadMagic = errors.New("bad magic number")

	// ErrUnsupportedVersion means a module container version is not 0.
	ErrUnsupportedVersion = errors.New("unsupported container version")

	// ErrCorruptPayload means the decompressor rejected a payload. There is
	// no resynchronisation strategy, so the whole run aborts.
	ErrCorruptPayload = errors.New("corrupt payload")
)

// ExitCodeFor maps an error from the extraction pipeline to its exit code.
// CLIError codes take precedence; unknown errors map to ExitGeneralError.
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}

	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return ExitUnsupportedFormat
	case errors.Is(err, ErrMalformedContainer):
		return ExitMalformedContainer
	case errors.Is(err, ErrMissingManifest), errors.Is(err, ErrMalformedManifest):
		return ExitManifestError
	case errors.Is(err, ErrBadMagic), errors.Is(err, ErrUnsupportedVersion):
		return ExitModuleHeader
	case errors.Is(err, ErrCorruptPayload):
		return ExitCorruptPayload
	default:
		return ExitGeneralError
	}
}

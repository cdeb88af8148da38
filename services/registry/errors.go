package registry

import "errors"

// Error taxonomy shared across the pipeline. Handlers map these to HTTP
// statuses; everything else is an internal failure.
var (
	// ErrNotFound covers unknown slugs and unknown versions. Structural
	// metadata read failures (missing file, invalid JSON) also surface as
	// ErrNotFound so that callers cannot distinguish "never existed" from
	// "corrupted".
	ErrNotFound = errors.New("component not found")

	// ErrNoEntry is returned by the detector when no entry candidate exists
	// under any resolution rule.
	ErrNoEntry = errors.New("no component entry file found")

	// ErrCompilation covers any failed build step, either target.
	ErrCompilation = errors.New("compilation failed")

	// ErrArtifactMissing means a previously recorded artifact locator no
	// longer resolves to a readable file.
	ErrArtifactMissing = errors.New("artifact missing")

	// ErrInvalidArtifact means a loaded SSR adapter is not invocable or did
	// not produce a string.
	ErrInvalidArtifact = errors.New("invalid artifact")

	// ErrValidation covers malformed caller input: missing upload file,
	// unsupported archive format, empty component name.
	ErrValidation = errors.New("validation failed")

	// ErrStoreIO covers metadata write failures and other store I/O errors
	// that are not "not found".
	ErrStoreIO = errors.New("store i/o failure")
)

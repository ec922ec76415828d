package terrain

import "errors"

// Sentinel error kinds for BTG decoding (spec §7), wrapped with
// context at the point of detection and logged rather than raised by
// callers that tolerate partial meshes.
var (
	ErrMalformedHeader = errors.New("malformed header")
	ErrTruncatedRecord = errors.New("truncated record")
	ErrCorruptProperty = errors.New("corrupt property")
	ErrCorruptElement  = errors.New("corrupt element")
)

// Package logging wraps log/slog with rotated JSON output, the
// idiomatic upgrade path shown by the wider retrieval pack for a
// long-running batch tool (see pkg/log in the retrieval pack): a
// structured, leveled logger backed by gopkg.in/natefinch/lumberjack.v2
// instead of an unbounded stdout stream.
package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin handle around *slog.Logger, kept as its own type
// so call sites depend on this package rather than on log/slog
// directly, matching the retrieval pack's Logger wrapper shape.
type Logger struct {
	*slog.Logger
}

// New constructs a Logger writing rotated JSON lines to
// <dir>/sceneryforge.log at the given level ("debug", "info", "warn",
// "error"; anything else falls back to "info").
func New(dir, level string) *Logger {
	if dir == "" {
		dir = "."
	}
	_ = os.MkdirAll(dir, 0o755)

	w := &lumberjack.Logger{
		Filename: filepath.Join(dir, "sceneryforge.log"),
		MaxSize:  64, // MB
		MaxAge:   14,
		Compress: true,
	}

	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return &Logger{Logger: slog.New(h)}
}

// event kinds named by spec §7 as "logged, not raised".
const (
	KindMalformedHeader      = "malformed_header"
	KindTruncatedRecord      = "truncated_record"
	KindCorruptProperty      = "corrupt_property"
	KindCorruptElement       = "corrupt_element"
	KindUnknownSubrecord     = "unknown_subrecord"
	KindTextureResolutionMiss = "texture_resolution_miss"
	KindTransformInvalid     = "transform_invalid"
	KindIOCopyFailure        = "io_copy_failure"
)

// Diagnostic logs one of spec §7's tolerated error kinds with
// structured fields (file, offset, record type) rather than a
// formatted string, so a batch run over thousands of BGL files stays
// greppable.
func (l *Logger) Diagnostic(kind, file string, offset int, recordType string, err error) {
	if l == nil {
		return
	}
	l.Warn("diagnostic",
		slog.String("kind", kind),
		slog.String("file", file),
		slog.Int("offset", offset),
		slog.String("recordType", recordType),
		slog.Any("error", err))
}

// DiagnosticError carries a spec §7 tolerated-error condition's
// structured context through the plain func(error) warning callbacks
// threaded through bgl, airport, gltfimport, assemble, and acemit, so
// those packages never need to depend on *Logger directly.
// The pipeline's top-level warn sink unwraps it and routes it through
// Diagnostic.
type DiagnosticError struct {
	Kind       string
	File       string
	Offset     int
	RecordType string
	Err        error
}

func (d *DiagnosticError) Error() string {
	return fmt.Sprintf("%s: %v", d.Kind, d.Err)
}

func (d *DiagnosticError) Unwrap() error { return d.Err }

// NewDiagnosticError constructs a DiagnosticError to be handed to an
// onWarning(error) callback.
func NewDiagnosticError(kind, file string, offset int, recordType string, err error) *DiagnosticError {
	return &DiagnosticError{Kind: kind, File: file, Offset: offset, RecordType: recordType, Err: err}
}

// WithFile wraps onWarn so any DiagnosticError reaching it that wasn't
// constructed with a file (because the constructing call site, e.g. a
// bounded BGL walker, only knows a byte offset, not the source path)
// gets one filled in before delivery.
func WithFile(path string, onWarn func(error)) func(error) {
	return func(err error) {
		var diag *DiagnosticError
		if errors.As(err, &diag) && diag.File == "" {
			diag.File = path
		}
		onWarn(err)
	}
}

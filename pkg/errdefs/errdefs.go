package errdefs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Stable error codes surfaced across the engine boundary.
const (
	CodeValidation        = "E_VALIDATION"
	CodeEmptyPatch        = "E_EMPTY_PATCH"
	CodeSchemaUnsupported = "E_SCHEMA_UNSUPPORTED"
	CodeWriterCASConflict = "WRITER_CAS_CONFLICT"
	CodeSyncDivergence    = "E_SYNC_DIVERGENCE"
	CodeSyncProtocol      = "E_SYNC_PROTOCOL"
	CodeSyncRemote        = "E_SYNC_REMOTE"
	CodeSyncTimeout       = "E_SYNC_TIMEOUT"
	CodeSyncNetwork       = "E_SYNC_NETWORK"
	CodeWormholeMultiWriter  = "E_WORMHOLE_MULTI_WRITER"
	CodeWormholeInvalidRange = "E_WORMHOLE_INVALID_RANGE"
	CodeWormholeSHANotFound  = "E_WORMHOLE_SHA_NOT_FOUND"
	CodeWormholeNotPatch     = "E_WORMHOLE_NOT_PATCH"
	CodeCycleDetected     = "CYCLE_DETECTED"
	CodeNoPath            = "NO_PATH"
	CodeOperationAborted  = "OPERATION_ABORTED"
	CodeNotFound          = "E_NOT_FOUND"
	CodeCorrupt           = "E_CORRUPT"
)

// E is an error with a machine-readable code and a free-form context map
// for diagnostics. It wraps an optional cause.
type E struct {
	Code    string
	Message string
	Context map[string]interface{}
	Cause   error
}

func (e *E) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *E) Unwrap() error {
	return e.Cause
}

// New creates a coded error.
func New(code, message string) *E {
	return &E{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code, format string, args ...interface{}) *E {
	return &E{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(cause error, code, message string) *E {
	return &E{Code: code, Message: message, Cause: cause}
}

// With adds a context entry and returns the same error for chaining.
func (e *E) With(key string, value interface{}) *E {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Aborted builds the error raised when a context is cancelled inside a
// long-running operation. The operation tag identifies the caller.
func Aborted(operation string, cause error) *E {
	return Wrap(cause, CodeOperationAborted, "operation aborted").With("operation", operation)
}

// Code extracts the error code from err or any error it wraps. Returns ""
// for uncoded errors.
func Code(err error) string {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code string) bool {
	return Code(err) == code
}

// GetContext returns the context map of the first coded error in the chain.
func GetContext(err error) map[string]interface{} {
	var e *E
	if errors.As(err, &e) {
		return e.Context
	}
	return nil
}

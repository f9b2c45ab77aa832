package tool

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable, machine-readable classification of a dispatch failure.
type Kind string

const (
	// KindUnknownTool is returned when an invocation names a tool not in the catalog.
	KindUnknownTool Kind = "UnknownToolError"
	// KindToolNotSupported is returned when a tool exists but the active configuration rejects it.
	KindToolNotSupported Kind = "ToolNotSupportedError"
	// KindMissingArgument is returned when a required parameter without default is absent.
	KindMissingArgument Kind = "MissingArgumentError"
	// KindInvalidArgument is returned when an undeclared parameter key is supplied.
	KindInvalidArgument Kind = "InvalidArgumentError"
	// KindTypeMismatch is returned when a value cannot be coerced to the declared type.
	KindTypeMismatch Kind = "TypeMismatchError"
	// KindHandlerFault is the fallback for any failure raised while a handler runs.
	KindHandlerFault Kind = "HandlerFault"
	// KindDuplicateTool is returned by Register when the name is already taken.
	KindDuplicateTool Kind = "DuplicateToolError"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrUnknownTool      = &ToolError{Kind: KindUnknownTool}
	ErrToolNotSupported = &ToolError{Kind: KindToolNotSupported}
	ErrMissingArgument  = &ToolError{Kind: KindMissingArgument}
	ErrInvalidArgument  = &ToolError{Kind: KindInvalidArgument}
	ErrTypeMismatch     = &ToolError{Kind: KindTypeMismatch}
	ErrHandlerFault     = &ToolError{Kind: KindHandlerFault}
	ErrDuplicateTool    = &ToolError{Kind: KindDuplicateTool}
)

// ToolError is a structured dispatch error that can cross the protocol
// boundary without losing its kind.
type ToolError struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	kind := strings.TrimSpace(string(e.Kind))
	msg := strings.TrimSpace(e.Message)
	switch {
	case kind == "" && msg == "":
		return string(KindHandlerFault)
	case kind == "":
		return msg
	case msg == "":
		return kind
	default:
		return fmt.Sprintf("%s: %s", kind, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports kind equality so callers can match against the exported sentinels.
func (e *ToolError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ToolError)
	if !ok || t == nil {
		return false
	}
	return t.Kind != "" && t.Kind == e.Kind
}

// NewError builds a ToolError. An empty kind falls back to HandlerFault and an
// empty message falls back to the cause text.
func NewError(kind Kind, message string, cause error) *ToolError {
	cleanKind := Kind(strings.TrimSpace(string(kind)))
	if cleanKind == "" {
		cleanKind = KindHandlerFault
	}
	cleanMsg := strings.TrimSpace(message)
	if cleanMsg == "" && cause != nil {
		cleanMsg = cause.Error()
	}
	return &ToolError{
		Kind:    cleanKind,
		Message: cleanMsg,
		Cause:   cause,
	}
}

// Errorf builds a ToolError with a formatted message.
func Errorf(kind Kind, format string, args ...any) *ToolError {
	return NewError(kind, fmt.Sprintf(format, args...), nil)
}

func withDetails(err *ToolError, details map[string]any) *ToolError {
	if err == nil {
		return nil
	}
	if len(details) == 0 {
		return err
	}
	if err.Details == nil {
		err.Details = make(map[string]any, len(details))
	}
	for key, value := range details {
		err.Details[key] = value
	}
	return err
}

// AsToolError extracts a *ToolError from an error chain.
func AsToolError(err error) (*ToolError, bool) {
	if err == nil {
		return nil, false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr != nil {
		return toolErr, true
	}
	return nil, false
}

// KindOf returns the kind carried by err, or "" when err is not a ToolError.
func KindOf(err error) Kind {
	if toolErr, ok := AsToolError(err); ok {
		return toolErr.Kind
	}
	return ""
}

// asFault normalizes any handler error into a ToolError. Typed handler errors
// keep their kind; everything else becomes a HandlerFault.
func asFault(toolName string, err error) *ToolError {
	if toolErr, ok := AsToolError(err); ok {
		out := *toolErr
		if strings.TrimSpace(out.Message) == "" {
			out.Message = err.Error()
		}
		if out.Kind == "" {
			out.Kind = KindHandlerFault
		}
		return &out
	}
	msg := fmt.Sprintf("Error executing tool %s: %v", toolName, err)
	return NewError(KindHandlerFault, msg, err)
}

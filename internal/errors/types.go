// Package errors provides the structured error type shared by the preview
// core, the module loader and the dev server.
//
// Errors carry a category (parse, resource, io, ...), a stable code and
// optional file location. Callers classify them with errors.As or with the
// Is* helpers below; the dev server turns them into overlay payloads.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeResource   ErrorType = "resource"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAnalysis   ErrorType = "analysis"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeParseFailed       = "ERR_PARSE_FAILED"
	ErrCodeNoSuchPreview     = "ERR_NO_SUCH_PREVIEW"
	ErrCodeComponentNotFound = "ERR_COMPONENT_NOT_FOUND"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodePathTraversal     = "ERR_PATH_TRAVERSAL"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeAnalysisFailed    = "ERR_ANALYSIS_FAILED"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// PreviewError is a structured error type with context.
type PreviewError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	FilePath string
	Line     int
	Column   int
	Context  map[string]interface{}
}

// Error implements the error interface.
func (e *PreviewError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PreviewError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PreviewError with the same type and code.
func (e *PreviewError) Is(target error) bool {
	var t *PreviewError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PreviewError) WithContext(key string, value interface{}) *PreviewError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *PreviewError) WithLocation(filePath string, line, column int) *PreviewError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// NewParseError creates a parse error for a source file.
func NewParseError(filePath, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:     ErrorTypeParse,
		Code:     ErrCodeParseFailed,
		Message:  message,
		Cause:    cause,
		FilePath: filePath,
	}
}

// NewResourceError creates an error for a virtual resource that cannot be
// resolved.
func NewResourceError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeResource,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewAnalysisError creates an error for failed optional enrichment.
func NewAnalysisError(filePath string, cause error) *PreviewError {
	return &PreviewError{
		Type:     ErrorTypeAnalysis,
		Code:     ErrCodeAnalysisFailed,
		Message:  "static analysis failed",
		Cause:    cause,
		FilePath: filePath,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsParseError checks if an error is a source parse failure.
func IsParseError(err error) bool {
	return hasType(err, ErrorTypeParse)
}

// IsResourceError checks if an error is an unresolvable resource.
func IsResourceError(err error) bool {
	return hasType(err, ErrorTypeResource)
}

// IsNotFound checks if an error denotes a missing file, component or preview.
func IsNotFound(err error) bool {
	var pe *PreviewError
	if !errors.As(err, &pe) {
		return false
	}

	switch pe.Code {
	case ErrCodeNoSuchPreview, ErrCodeComponentNotFound, ErrCodeFileNotFound:
		return true
	}

	return false
}

func hasType(err error, t ErrorType) bool {
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}

// ErrNoSuchPreview reports a preview index that does not exist in a file.
func ErrNoSuchPreview(fileName string, index int) *PreviewError {
	return NewResourceError(
		ErrCodeNoSuchPreview,
		fmt.Sprintf("no such preview at index %d in file %s", index, fileName),
	).WithContext("index", index).WithLocation(fileName, 0, 0)
}

// ErrComponentNotFound reports a source file that is not a known component.
func ErrComponentNotFound(fileName string) *PreviewError {
	return NewResourceError(
		ErrCodeComponentNotFound,
		"component not found: "+fileName,
	)
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *PreviewError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrPathTraversal creates an error for a path escaping the project root.
func ErrPathTraversal(path string) *PreviewError {
	return NewValidationError(ErrCodePathTraversal, "path escapes project root: "+path)
}

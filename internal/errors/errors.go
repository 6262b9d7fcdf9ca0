package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the trigrep system
type ErrorType string

const (
	// Index and data file errors
	ErrorTypeFormat   ErrorType = "format"
	ErrorTypeIndexing ErrorType = "indexing"

	// Query errors
	ErrorTypeQuery ErrorType = "query"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// NoChunk marks a FormatError raised outside any chunk (header, resolver).
const NoChunk = -1

// FormatError reports a malformed or truncated index or data file.
// Offset and Chunk locate the failure for diagnosis.
type FormatError struct {
	Type       ErrorType
	File       string // "index" or "data"
	Operation  string
	Offset     int64
	Chunk      int64
	Underlying error
	Timestamp  time.Time
}

// NewFormatError creates a format error at the given file offset.
func NewFormatError(file, op string, offset int64, err error) *FormatError {
	return &FormatError{
		Type:       ErrorTypeFormat,
		File:       file,
		Operation:  op,
		Offset:     offset,
		Chunk:      NoChunk,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithChunk records the chunk number being scanned when the error occurred.
func (e *FormatError) WithChunk(chunk int64) *FormatError {
	e.Chunk = chunk
	return e
}

// Error implements the error interface
func (e *FormatError) Error() string {
	if e.Chunk != NoChunk {
		return fmt.Sprintf("%s file: %s at offset %d (chunk %d): %v", e.File, e.Operation, e.Offset, e.Chunk, e.Underlying)
	}
	return fmt.Sprintf("%s file: %s at offset %d: %v", e.File, e.Operation, e.Offset, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *FormatError) Unwrap() error {
	return e.Underlying
}

// IndexingError represents an error while building an index
type IndexingError struct {
	Type       ErrorType
	FilePath   string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewIndexingError creates a new indexing error with context
func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{
		Type:       ErrorTypeIndexing,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *IndexingError) WithFile(path string) *IndexingError {
	e.FilePath = path
	return e
}

// Error implements the error interface
func (e *IndexingError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *IndexingError) Unwrap() error {
	return e.Underlying
}

// QueryError reports a pattern that could not be turned into a query tree
// or line matcher. It is always raised before scanning starts.
type QueryError struct {
	Type       ErrorType
	Pattern    string
	Underlying error
	Timestamp  time.Time
}

// NewQueryError creates a new query error
func NewQueryError(pattern string, err error) *QueryError {
	return &QueryError{
		Type:       ErrorTypeQuery,
		Pattern:    pattern,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *QueryError) Error() string {
	return fmt.Sprintf("query compile failed for pattern %q: %v", e.Pattern, e.Underlying)
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileNotFound
	if errors.Is(err, fs.ErrPermission) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// ErrOrNil returns nil when no errors were collected.
func (e *MultiError) ErrOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

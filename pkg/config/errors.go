package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration loading and reference resolution.
// Callers match with errors.Is; the structured wrappers below add file or
// component context on top.
var (
	ErrConfigNotFound       = errors.New("configuration file not found")
	ErrInvalidYAML          = errors.New("invalid YAML syntax")
	ErrPatternNotFound      = errors.New("scrub pattern not found")
	ErrPatternGroupNotFound = errors.New("pattern group not found")
	ErrInvalidPattern       = errors.New("invalid scrub pattern")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidValue         = errors.New("invalid field value")
)

// ValidationError pins a rejected setting to the exact piece of
// configuration that caused it: the component kind (custom_pattern,
// field_override, text_scrub, http, retention), the component's own
// name, and optionally the offending field.
type ValidationError struct {
	Component string
	ID        string
	Field     string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s '%s': field '%s': %v", e.Component, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s '%s': %v", e.Component, e.ID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError; field may be empty when the
// whole component is at fault.
func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{Component: component, ID: id, Field: field, Err: err}
}

// LoadError ties a loading failure to the file that caused it.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError builds a LoadError for the given file.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}

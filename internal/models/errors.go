package models

import (
	"fmt"
	"strings"
)

// DataLoadError means a source was unreachable or yielded no usable rows.
// Callers must surface it as an explicit error state.
type DataLoadError struct {
	Source string
	Cause  error
}

func (e *DataLoadError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("failed to load %s source", e.Source)
	}
	return fmt.Sprintf("failed to load %s source: %v", e.Source, e.Cause)
}

func (e *DataLoadError) Unwrap() error {
	return e.Cause
}

// IsTransient returns true as source fetches may succeed on retry
func (e *DataLoadError) IsTransient() bool {
	return true
}

// MalformedRowError describes a single row problem absorbed during load
type MalformedRowError struct {
	Source string
	Row    int
	Column string
	Value  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("%s row %d: column %q value %q: %s", e.Source, e.Row, e.Column, e.Value, e.Reason)
}

// IsTransient returns false as the row content itself is bad
func (e *MalformedRowError) IsTransient() bool {
	return false
}

// AggregationInputError is returned when the matrix is asked to aggregate a
// dataset that was loaded without one of its required columns.
type AggregationInputError struct {
	Missing []string
}

func (e *AggregationInputError) Error() string {
	return "matrix input is missing required columns: " + strings.Join(e.Missing, ", ")
}

// IsTransient returns false as the dataset shape will not change without a reload
func (e *AggregationInputError) IsTransient() bool {
	return false
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// OverlapError rejects a price whose validity window intersects an existing one
type OverlapError struct {
	Destination string
	ExistingID  int64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("pricing for %s overlaps existing entry %d", e.Destination, e.ExistingID)
}

func (e *OverlapError) IsTransient() bool {
	return false
}

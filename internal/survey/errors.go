package survey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// LoadError is returned when a survey source cannot produce a table: the
// file or object is missing, unreadable, or required columns are absent.
type LoadError struct {
	Source  string
	Missing []Attribute
	Err     error
}

func (e *LoadError) Error() string {
	if len(e.Missing) > 0 {
		names := lo.Map(e.Missing, func(a Attribute, _ int) string { return string(a) })
		return fmt.Sprintf("load %s: missing required columns: %s", e.Source, strings.Join(names, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("load %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("load %s: failed", e.Source)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// AsLoadError reports whether err is (or wraps) a LoadError
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// UnknownAttributeError is returned for attribute names outside the schema
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute: %q", e.Name)
}

// UnknownLevelError is returned for location levels other than raw or grouped
type UnknownLevelError struct {
	Name string
}

func (e *UnknownLevelError) Error() string {
	return fmt.Sprintf("unknown location level: %q", e.Name)
}

// SourceNotFoundError is returned when no source is registered under ID
type SourceNotFoundError struct {
	ID string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("survey source not found: %s", e.ID)
}

// IsNotFound reports whether err is a SourceNotFoundError
func IsNotFound(err error) bool {
	var nf *SourceNotFoundError
	return errors.As(err, &nf)
}

package store

import (
	"errors"
	"fmt"
)

// Kind names the entity an id-keyed operation was looking for
type Kind string

const (
	KindSuite    Kind = "test suite"
	KindChild    Kind = "child suite"
	KindTestCase Kind = "test case"
	KindVersion  Kind = "test case version"
)

// NotFoundError is returned when an id-keyed operation targets a missing entity.
// The snapshot is left untouched and no observer is notified.
type NotFoundError struct {
	Kind Kind
	ID   int
	// Label replaces ID for entities keyed by a string, such as versions
	Label string
}

func (e *NotFoundError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s %s not found", e.Kind, e.Label)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

var (
	// ErrInvalidStatus is returned for statuses outside the allowed set
	ErrInvalidStatus = errors.New("invalid test case status")
	// ErrInvalidPriority is returned for priorities other than high, medium or low
	ErrInvalidPriority = errors.New("invalid test case priority")
	// ErrNoSteps is returned when a test case would be left without any non-blank step
	ErrNoSteps = errors.New("test case requires at least one non-blank step")
)

func notFound(kind Kind, id int) error {
	return &NotFoundError{Kind: kind, ID: id}
}

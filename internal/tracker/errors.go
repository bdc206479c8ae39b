package tracker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrStoreConnection   = errors.New("store connection failed")
	ErrDuplicateField    = errors.New("duplicate field")
	ErrReferenceNotFound = errors.New("reference not found")
	ErrFieldLength       = errors.New("invalid field length")
	ErrFieldType         = errors.New("invalid field type")
	ErrFieldFormat       = errors.New("invalid field format")
	ErrFieldRequired     = errors.New("field required")
	ErrMissingParameter  = errors.New("missing parameter")
	ErrPersistence       = errors.New("persistence error")
)

// DuplicateFieldError is returned by stores when a unique constraint rejects a write.
type DuplicateFieldError struct {
	Field string
	Value string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s [%s] already exists", e.Field, e.Value)
}

func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicateField
}

type FieldError struct {
	Field   string
	Kind    error
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

// ValidationError holds every failed field of a single request.
type ValidationError struct {
	Fields map[string]*FieldError
}

func (e *ValidationError) add(fe *FieldError) {
	if e.Fields == nil {
		e.Fields = map[string]*FieldError{}
	}
	// first failure per field wins
	if _, ok := e.Fields[fe.Field]; !ok {
		e.Fields[fe.Field] = fe
	}
}

func (e *ValidationError) fieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, name := range e.fieldNames() {
		parts = append(parts, e.Fields[name].Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Fields))
	for _, name := range e.fieldNames() {
		errs = append(errs, e.Fields[name])
	}
	return errs
}

// Messages returns the field -> message map rendered to clients.
func (e *ValidationError) Messages() map[string]string {
	messages := make(map[string]string, len(e.Fields))
	for name, fe := range e.Fields {
		messages[name] = fe.Message
	}
	return messages
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

// PersistenceErr wraps an unexpected store error.
func PersistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// StoreConnectionErr wraps a failure to reach or bootstrap the backing store.
func StoreConnectionErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreConnection, op, err)
}

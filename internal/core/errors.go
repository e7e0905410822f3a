package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrAuthentication  = errors.New("invalid credentials")
	ErrAccountDisabled = fmt.Errorf("%w: account disabled", ErrAuthentication)
	ErrConflict        = errors.New("conflict")
)

// NonFieldKey is the key under which errors spanning several fields are reported.
const NonFieldKey = "non_field_errors"

// Messages shared between validation and the storage constraint fallback.
const (
	MsgRequired         = "This field is required."
	MsgDuplicateBudget  = "A budget for this category in this month and year already exists."
	MsgDuplicateName    = "You already have a category with this name."
	MsgForeignCategory  = "You can only use your own categories."
	MsgUsernameTaken    = "A user with that username already exists."
	MsgEmailTaken       = "A user with that email already exists."
	MsgInvalidNumber    = "A valid number is required."
	MsgInvalidInteger   = "A valid integer is required."
	MsgInvalidDate      = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	MsgInvalidPK        = "Incorrect type. Expected pk value."
	MsgTooManyDecimals  = "Ensure that there are no more than 2 decimal places."
	MsgTooManyDigits    = "Ensure that there are no more than 10 digits in total."
	MsgMonthRange       = "Month must be between 1 and 12."
	MsgOldPasswordWrong = "Old password is incorrect."
)

// ValidationError collects field level and non-field messages for one write.
type ValidationError struct {
	Fields   map[string][]string
	NonField []string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// FieldError builds a ValidationError holding a single field message.
func FieldError(field, msg string) *ValidationError {
	return NewValidationError().Add(field, msg)
}

// NonFieldError builds a ValidationError holding a single non-field message.
func NonFieldError(msg string) *ValidationError {
	e := NewValidationError()
	e.AddNonField(msg)
	return e
}

func (e *ValidationError) Add(field, msg string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
	return e
}

func (e *ValidationError) AddNonField(msg string) {
	e.NonField = append(e.NonField, msg)
}

// Has reports whether field already carries a message.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0 && len(e.NonField) == 0
}

// Merge appends every message of other into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, m := range msgs {
			e.Add(field, m)
		}
	}
	e.NonField = append(e.NonField, other.NonField...)
}

// Err returns e as an error, or nil when nothing was collected.
func (e *ValidationError) Err() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

// Map flattens the error into the wire shape, non-field messages under NonFieldKey.
func (e *ValidationError) Map() map[string][]string {
	out := make(map[string][]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	if len(e.NonField) > 0 {
		out[NonFieldKey] = e.NonField
	}
	return out
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	if len(e.NonField) > 0 {
		parts = append(parts, NonFieldKey+": "+strings.Join(e.NonField, " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

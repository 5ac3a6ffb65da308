package admin

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/store"
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func invalidField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// validate runs v's rules and converts field errors into a *ValidationError.
func validate(v validation.Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
		for field, ferr := range fieldErrs {
			out.Fields[field] = ferr.Error()
		}
		return out
	}
	return err
}

// failure attaches a client-facing message to one of the sentinel kinds.
type failure struct {
	kind error
	msg  string
}

func (f *failure) Error() string { return f.msg }

func (f *failure) Unwrap() error { return f.kind }

func notFound(msg string) error     { return &failure{kind: store.ErrNotFound, msg: msg} }
func conflict(msg string) error     { return &failure{kind: store.ErrConflict, msg: msg} }
func forbidden(msg string) error    { return &failure{kind: auth.ErrForbidden, msg: msg} }
func unauthorized(msg string) error { return &failure{kind: auth.ErrUnauthorized, msg: msg} }

func userErr(err error) error {
	var c *store.ConflictError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &c):
		if c.Field == "" {
			return conflict("User already exists")
		}
		return conflict(fmt.Sprintf("User with this %s already exists", c.Field))
	case errors.Is(err, store.ErrNotFound):
		return notFound("User not found")
	}
	return err
}

func projectErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound("Project not found")
	case errors.Is(err, store.ErrInvalidReference):
		return invalidField("assignedTo", "must reference existing users")
	}
	return err
}

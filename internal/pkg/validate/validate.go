// Package validate wraps one shared go-playground validator for config structs
// and single values such as email addresses.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// FieldError names one failed constraint.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s must satisfy %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s must satisfy %s", e.Field, e.Tag)
}

// Error lists every failed constraint of one Struct call.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.String())
	}
	return strings.Join(msgs, "; ")
}

// Struct checks s against its validate tags. Constraint failures come back as *Error.
func Struct(s interface{}) error {
	return convert(v.Struct(s))
}

// Var checks a single value against tag, e.g. Var(addr, "email").
func Var(value interface{}, tag string) error {
	return convert(v.Var(value, tag))
}

func convert(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(ve))}
	for _, fe := range ve {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

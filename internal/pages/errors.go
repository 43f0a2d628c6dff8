package pages

import (
	"errors"
	"strings"
)

var (
	ErrDeclined        = errors.New("delete not confirmed")
	ErrMissingKey      = errors.New("record has no key")
	ErrUnknownResource = errors.New("unknown resource")
	ErrReadOnly        = errors.New("resource is read only")
	ErrSuperseded      = errors.New("fetch superseded by a newer one")
)

// AppError is a success:false reply.
type AppError struct {
	Op      string
	Message string
}

func (e *AppError) Error() string {
	return e.Op + ": " + e.Message
}

// ValidationError is a field rejected before any request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every rejected field of a form.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields maps field names to messages for inline display.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		out[e.Field] = e.Message
	}
	return out
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, &ValidationError{Field: field, Message: message})
}

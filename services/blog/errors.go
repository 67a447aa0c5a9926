package blog

import "errors"

var (
	ErrInvalidInput = errors.New("invalid blog input")
	ErrNotFound     = errors.New("blog entry not found")
)

type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func invalidInput(message string) error {
	return &Error{Kind: ErrInvalidInput, Message: message}
}

func notFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

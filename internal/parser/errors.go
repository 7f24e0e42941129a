package parser

import "fmt"

// ErrParse matches any *ParseError with errors.Is.
var ErrParse = &ParseError{}

// ParseError reports a skill document that cannot be turned into a record.
type ParseError struct {
	Provider string
	Path     string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s:%s: %s", e.Provider, e.Path, e.Reason)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

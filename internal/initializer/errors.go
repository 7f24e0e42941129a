package initializer

import "fmt"

type ErrorType int

const (
	ErrTypeDirCreate ErrorType = iota
	ErrTypeConfigWrite
	ErrTypeExists
	ErrTypeRender
)

type InitError struct {
	Type    ErrorType
	Path    string
	Message string
	Err     error
}

func (e *InitError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *InitError) Unwrap() error {
	return e.Err
}

func (e *InitError) Is(target error) bool {
	t, ok := target.(*InitError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

package fetch

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// ErrorKindTransient covers timeouts, connection failures, 5xx and rate limiting.
	ErrorKindTransient ErrorKind = iota
	// ErrorKindPermanent covers 404s, malformed URLs and malformed responses.
	ErrorKindPermanent
)

func (k ErrorKind) String() string {
	if k == ErrorKindTransient {
		return "transient"
	}
	return "permanent"
}

var (
	ErrTransient = &FetchError{Kind: ErrorKindTransient}
	ErrPermanent = &FetchError{Kind: ErrorKindPermanent}
)

type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	if t, ok := target.(*FetchError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == ErrorKindTransient
}

// Package toon produces the TOON (Token-Oriented Object Notation) rendition of
// the catalog from its minified JSON.
//
// Encoders are tried in order; the first success wins. When every encoder
// fails the caller skips TOON output for the run.
package toon

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/smy-101/skillcatalog/internal/logger"
)

// Encoder converts minified JSON to TOON.
type Encoder interface {
	Name() string
	Encode(ctx context.Context, minJSON []byte) ([]byte, error)
}

// EncodingError reports an encoder that is unavailable or failed.
type EncodingError struct {
	Encoder string
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("toon encoder %s: %v", e.Encoder, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Chain is an ordered list of encoders.
type Chain []Encoder

// Encode returns the output of the first encoder that succeeds and its name.
// If none does, the error aggregates every attempt.
func (c Chain) Encode(ctx context.Context, minJSON []byte) ([]byte, string, error) {
	var errs *multierror.Error
	for _, enc := range c {
		out, err := enc.Encode(ctx, minJSON)
		if err == nil {
			return out, enc.Name(), nil
		}
		logger.G(ctx).WithError(err).WithField("encoder", enc.Name()).Debug("toon encoder failed, trying next")
		errs = multierror.Append(errs, wrap(enc.Name(), err))
	}
	if errs == nil {
		return nil, "", &EncodingError{Encoder: "chain", Err: fmt.Errorf("no encoders configured")}
	}
	return nil, "", errs.ErrorOrNil()
}

func wrap(name string, err error) error {
	if _, ok := err.(*EncodingError); ok {
		return err
	}
	return &EncodingError{Encoder: name, Err: err}
}

// Package dpi implements the deep packet inspection core: a layered,
// recursive protocol parser that turns raw link-layer frames into a
// validated FrameMetadata decomposition.
package dpi

import "errors"

// ErrShortBuffer means a decoder ran out of bytes while reading a field.
var ErrShortBuffer = errors.New("dpi: short buffer")

// ErrVerify means a decoded field failed a structural constraint (bad
// version, non-zero reserved bits, wrong magic, ...).
var ErrVerify = errors.New("dpi: verification failed")

// ErrDepthExceeded means the traversal or DNS pointer-chase recursion cap
// was reached.
var ErrDepthExceeded = errors.New("dpi: recursion depth exceeded")

// ParseError wraps one of the three sentinel errors above with the
// identifier of the decoder that raised it.
type ParseError struct {
	Ident Identifier
	Err   error
}

func (e *ParseError) Error() string {
	return e.Ident.String() + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

func verifyErr(id Identifier) error   { return &ParseError{Ident: id, Err: ErrVerify} }
func shortErr(id Identifier) error    { return &ParseError{Ident: id, Err: ErrShortBuffer} }
func depthExceeded(id Identifier) error { return &ParseError{Ident: id, Err: ErrDepthExceeded} }

package multimodal

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	ErrSessionClosed       = errors.New("multimodal: session is closed")
	ErrNoMultimodalContext = errors.New("multimodal: no multimodal projector is bound to the session")
	ErrBitmapDisposed      = errors.New("multimodal: bitmap has been disposed or was not initialized")
	ErrCollectionDisposed  = errors.New("multimodal: bitmap collection has been disposed")
	ErrChunksConsumed      = errors.New("multimodal: tokenize result has been evaluated or closed")
	ErrWrongSession        = errors.New("multimodal: tokenize result belongs to a different session")
)

// DecodeError provides details about image buffer decode failures.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("multimodal: unable to decode buffer: %s", e.Reason)
}

// TokenizeError carries the native status code returned by the tokenizer.
type TokenizeError struct {
	Code int32
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("multimodal: unable to tokenize input: error code %d", e.Code)
}

// EvalError carries the native status code returned by the evaluator. The
// session's sequence position is left unmodified when this error is returned.
type EvalError struct {
	Code int32
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("multimodal: unable to evaluate chunks: error code %d", e.Code)
}

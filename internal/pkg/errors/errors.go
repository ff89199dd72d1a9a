package errors

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalid               = errors.New("invalid")
	ErrConflict              = errors.New("conflict")
	ErrNotReady              = errors.New("video not indexed yet")
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
	ErrAIUnavailable         = errors.New("ai unavailable")
	ErrInternal              = errors.New("internal")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

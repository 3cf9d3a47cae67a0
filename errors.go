package interview

import "errors"

var (
	ErrPersonaNotFound   = errors.New("interview: persona not found")
	ErrSettingNotFound   = errors.New("interview: setting not found")
	ErrModelUnavailable  = errors.New("interview: model unavailable")
	ErrModelTimeout      = errors.New("interview: model timed out")
	ErrSessionTerminated = errors.New("interview: session terminated")
	ErrInvalidState      = errors.New("interview: invalid session state")
	ErrSessionBusy       = errors.New("interview: session busy")
	ErrEmptyAnswer       = errors.New("interview: answer is empty")
	ErrEmptyInstruction  = errors.New("interview: instruction is empty")
	ErrReviewUnavailable = errors.New("interview: review unavailable")
)

package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching.
var (
	ErrValidation       = errors.New("validation error")
	ErrInsufficientData = errors.New("insufficient data")
	ErrModelFit         = errors.New("model fit error")
)

// ValidationError 入力（履歴またはリクエスト）が不正
type ValidationError struct {
	Field  string
	Index  int // 履歴の位置。該当しない場合は -1
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("validation error: %s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientDataError 戦略に対して履歴の件数が不足
type InsufficientDataError struct {
	Strategy string
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need at least %d observations, got %d", e.Strategy, e.Required, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// ModelFitError 数値的なフィッティングが収束しなかった
type ModelFitError struct {
	Strategy   string
	Iterations int
	Err        error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("model fit failed for %s after %d iterations: %v", e.Strategy, e.Iterations, e.Err)
}

func (e *ModelFitError) Unwrap() error { return e.Err }

func (e *ModelFitError) Is(target error) bool { return target == ErrModelFit }

// ErrorKind returns a short machine-readable name for the error's kind.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrModelFit):
		return "model_fit_error"
	default:
		return "internal_error"
	}
}

package service

import (
	"errors"
	"fmt"
)

// ErrNoMealData is returned when a daily input has neither a summary
// description nor any meal with usable data.
var ErrNoMealData = errors.New("no meal description or photo provided")

// EstimationError covers failed nutrition estimation: the API call errored or
// the model returned something that is not the expected JSON object.
type EstimationError struct {
	Reason string
	Err    error
}

func (e *EstimationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nutrition estimation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("nutrition estimation failed: %s", e.Reason)
}

func (e *EstimationError) Unwrap() error { return e.Err }

// CaptionError covers failed caption generation.
type CaptionError struct {
	Err error
}

func (e *CaptionError) Error() string {
	return fmt.Sprintf("caption generation failed: %v", e.Err)
}

func (e *CaptionError) Unwrap() error { return e.Err }

// ImageGenerationError covers failed placeholder image generation.
type ImageGenerationError struct {
	Err error
}

func (e *ImageGenerationError) Error() string {
	return fmt.Sprintf("image generation failed: %v", e.Err)
}

func (e *ImageGenerationError) Unwrap() error { return e.Err }

// LoginFailureKind is the closed set of ways an Instagram login can fail.
type LoginFailureKind string

const (
	LoginFailureBadCredentials  LoginFailureKind = "bad_credentials"
	LoginFailureTwoFactor       LoginFailureKind = "two_factor_required"
	LoginFailureChallenge       LoginFailureKind = "challenge_required"
	LoginFailureCheckpoint      LoginFailureKind = "checkpoint_required"
	LoginFailureRecoveryForm    LoginFailureKind = "recovery_form_required"
	LoginFailureRateLimited     LoginFailureKind = "rate_limited"
	LoginFailureTooManyAttempts LoginFailureKind = "too_many_attempts"
	LoginFailureUnknown         LoginFailureKind = "unknown"
)

// LoginError carries the failure category plus the platform's detail message.
type LoginError struct {
	Kind   LoginFailureKind
	Detail string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("instagram login failed (%s): %s", e.Kind, e.Detail)
}

// PublishError wraps the last recorded login or upload error after a failed
// publish attempt.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("instagram publish failed: %v", e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

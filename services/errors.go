package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrRankNotFound       = errors.New("rank not found")
	ErrNotLinked          = errors.New("member has no linked group account")
	ErrAccountTaken       = errors.New("group account already linked to another member")
	ErrAlreadyFinal       = errors.New("submission already finalized")
)

// ValidationError reports a rejected input before any store is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation returns true if the error is a ValidationError, unwrapping as needed.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// RateLimitedError is returned by platform clients when the group platform
// throttles a call. RetryAfter is advisory and may be zero.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// IsRateLimited returns true if the error is a RateLimitedError, unwrapping as needed.
func IsRateLimited(err error) bool {
	var re *RateLimitedError
	return errors.As(err, &re)
}

// ExternalServiceError wraps a non-throttle failure from a remote collaborator.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// PointsDeficitError rejects a promotion into a point-gated rank the member
// has not yet earned.
type PointsDeficitError struct {
	RankName string
	Required int
	Points   int
}

func (e *PointsDeficitError) Error() string {
	return fmt.Sprintf("%d more points needed for %s (%d/%d)", e.Deficit(), e.RankName, e.Points, e.Required)
}

// Deficit is how many points short the member is.
func (e *PointsDeficitError) Deficit() int {
	return e.Required - e.Points
}

package enrollment

import "errors"

// Sentinel errors for the enrollment service layer.
var (
	ErrNotFound         = errors.New("enrollment not found")
	ErrLeadNotFound     = errors.New("lead not found")
	ErrNotReactivatable = errors.New("enrollment is not in error status")
)

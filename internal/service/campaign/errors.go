package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrAlreadyGenerating = errors.New("step generation already in progress")
	ErrNoSteps           = errors.New("campaign has no steps")
)

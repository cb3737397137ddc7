package narrative

import "errors"

// Sentinel errors for the narrative service layer.
var (
	ErrInvalidRow = errors.New("invalid row identity")
	ErrRowBusy    = errors.New("annotation is being written by another session")
)

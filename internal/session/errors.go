package session

import "errors"

// Sentinel errors for the review session.
var (
	ErrNotLoaded     = errors.New("no dataset loaded")
	ErrNoRecords     = errors.New("dataset contains no records")
	ErrDuplicateRow  = errors.New("duplicate row identity in dataset")
	ErrUnknownRow    = errors.New("row is not part of the loaded dataset")
	ErrInvalidRecord = errors.New("invalid record")
)

package domain

import "errors"

var (
	// ErrDatasetNotFound is returned when no descriptor matches a name.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrInvalidTile is returned for addresses outside the pyramid.
	ErrInvalidTile = errors.New("invalid tile address")
	// ErrStorage wraps every failure to read a dataset's files.
	ErrStorage = errors.New("storage error")
	// ErrConfig wraps descriptor and configuration problems.
	ErrConfig = errors.New("config error")
)

package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyQuery      = errors.New("query must not be empty")
	ErrUnavailable     = errors.New("upstream service unavailable")
	ErrRateLimited     = errors.New("too many chat requests for this session")

	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)

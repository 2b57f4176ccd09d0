package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleState is returned when a conditional update matched no row
	// because the entity is no longer in the expected state.
	ErrStaleState = errors.New("entity state changed")

	// ErrDriverBusy is returned when a driver already holds an active ride.
	ErrDriverBusy = errors.New("driver already assigned to an active ride")

	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("entity already exists")
)

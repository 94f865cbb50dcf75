package state

import "errors"

var (
	ErrInvalidCapacity       = errors.New("invalid capacity")
	ErrInvalidOccupancy      = errors.New("invalid occupancy")
	ErrCapacityNotConfigured = errors.New("capacity not configured")
	ErrInvalidBooking        = errors.New("invalid booking")
	ErrInvalidRoomCount      = errors.New("invalid room count")
	ErrRoomNotFound          = errors.New("room not found")
	ErrRoomExists            = errors.New("room already exists")

	// ErrAlreadyBooked and ErrNotBooked are returned by commands whose
	// precondition does not hold. The room is left untouched.
	ErrAlreadyBooked = errors.New("room already booked")
	ErrNotBooked     = errors.New("room not booked")
)

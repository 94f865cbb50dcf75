package state

import "fmt"

// Command is a single state-changing request bound to its room at
// construction time.
type Command interface {
	Execute() error
}

type BookingCommand struct {
	room            *Room
	start           string
	durationMinutes int
}

func NewBookingCommand(room *Room, start string, durationMinutes int) *BookingCommand {
	return &BookingCommand{room: room, start: start, durationMinutes: durationMinutes}
}

// Execute books the room unless it is already booked or occupied.
func (c *BookingCommand) Execute() error {
	c.room.opMu.Lock()
	defer c.room.opMu.Unlock()
	if c.room.IsBooked() {
		return fmt.Errorf("room %d: %w", c.room.id, ErrAlreadyBooked)
	}
	return c.room.book(c.start, c.durationMinutes)
}

type CancellationCommand struct {
	room *Room
}

func NewCancellationCommand(room *Room) *CancellationCommand {
	return &CancellationCommand{room: room}
}

// Execute cancels the booking and empties the room. A room that is neither
// booked nor occupied yields ErrNotBooked.
func (c *CancellationCommand) Execute() error {
	c.room.opMu.Lock()
	defer c.room.opMu.Unlock()
	if !c.room.IsBooked() {
		return fmt.Errorf("room %d: %w", c.room.id, ErrNotBooked)
	}
	return c.room.cancelBooking()
}

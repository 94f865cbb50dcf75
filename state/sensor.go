package state

import (
	"fmt"
	"io"
)

// OccupancySensor switches the room environment (AC and lights) with
// occupancy and reports the decision to Out.
type OccupancySensor struct {
	Out io.Writer
}

func NewOccupancySensor(out io.Writer) *OccupancySensor {
	return &OccupancySensor{Out: out}
}

func (s *OccupancySensor) Update(room *Room) error {
	var err error
	if room.IsOccupied() {
		_, err = fmt.Fprintf(s.Out, "OccupancySensor: Room %d is occupied. AC and lights turned on.\n", room.ID())
	} else {
		_, err = fmt.Fprintf(s.Out, "OccupancySensor: Room %d is unoccupied. AC and lights are turned off\n", room.ID())
	}
	return err
}

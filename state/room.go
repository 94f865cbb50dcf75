package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Booking is the single active reservation slot of a room. Start is an
// opaque label supplied by the caller ("10:00", "tomorrow 9am", ...).
type Booking struct {
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
}

// RoomStats is a point-in-time copy of a room's state and usage counters.
type RoomStats struct {
	LastUnoccupiedAt  time.Time     `json:"last_unoccupied_at"`
	Booking           *Booking      `json:"booking,omitempty"`
	TotalOccupiedTime time.Duration `json:"-"`
	TotalOccupiedMs   int64         `json:"total_occupied_ms"`
	ID                int           `json:"id"`
	Capacity          int           `json:"capacity"`
	Occupants         int           `json:"occupants"`
	TotalBookings     int           `json:"total_bookings"`
	Occupied          bool          `json:"occupied"`
	Booked            bool          `json:"booked"`
}

// Room tracks occupancy, the current booking and cumulative usage for one
// meeting room.
//
// Mutations are serialized by opMu, which stays held while observers run.
// Field access goes through mu so observers can read the room they are
// notified about.
type Room struct {
	now    func() time.Time
	logger zerolog.Logger

	opMu sync.Mutex
	mu   sync.RWMutex

	booking        *Booking
	lastUnoccupied time.Time
	observers      []Observer
	totalOccupied  time.Duration
	id             int
	capacity       int
	occupants      int
	totalBookings  int
}

type RoomOption func(*Room)

// WithClock replaces time.Now as the room's time source.
func WithClock(now func() time.Time) RoomOption {
	return func(r *Room) {
		r.now = now
	}
}

func WithLogger(logger zerolog.Logger) RoomOption {
	return func(r *Room) {
		r.logger = logger
	}
}

// NewRoom creates a room. A capacity of zero leaves the room unconfigured.
func NewRoom(id, capacity int, opts ...RoomOption) *Room {
	r := &Room{
		id:     id,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	if capacity > 0 {
		r.capacity = capacity
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Int("room", id).Logger()
	r.lastUnoccupied = r.now()
	return r
}

func (r *Room) ID() int {
	return r.id
}

func (r *Room) Capacity() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capacity
}

func (r *Room) Occupants() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.occupants
}

// Booking returns the active booking, if any.
func (r *Room) Booking() (Booking, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.booking == nil {
		return Booking{}, false
	}
	return *r.booking, true
}

// SetCapacity configures the maximum number of simultaneous occupants.
// A capacity below the current occupant count is rejected.
func (r *Room) SetCapacity(capacity int) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if capacity <= 0 {
		return fmt.Errorf("room %d: capacity %d: %w", r.id, capacity, ErrInvalidCapacity)
	}
	if capacity < r.occupants {
		return fmt.Errorf("room %d: capacity %d below %d current occupants: %w", r.id, capacity, r.occupants, ErrInvalidCapacity)
	}
	r.capacity = capacity
	r.logger.Info().Int("capacity", capacity).Msgf("Room %d maximum capacity set to %d", r.id, capacity)
	return nil
}

// SetOccupancy records a new occupant count and notifies observers. Setting
// the current count again is a no-op.
func (r *Room) SetOccupancy(occupants int) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.setOccupancy(occupants)
}

// setOccupancy expects opMu to be held.
func (r *Room) setOccupancy(occupants int) error {
	changed, observers, err := r.applyOccupancy(occupants)
	if err != nil || !changed {
		return err
	}
	return r.notifyObservers(observers)
}

func (r *Room) applyOccupancy(occupants int) (bool, []Observer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case occupants < 0:
		return false, nil, fmt.Errorf("room %d: %d occupants: %w", r.id, occupants, ErrInvalidOccupancy)
	case occupants == r.occupants:
		return false, nil, nil
	case occupants > 0 && r.capacity == 0:
		return false, nil, fmt.Errorf("room %d: %w", r.id, ErrCapacityNotConfigured)
	case occupants > r.capacity:
		return false, nil, fmt.Errorf("room %d: %d occupants exceeds capacity %d: %w", r.id, occupants, r.capacity, ErrInvalidOccupancy)
	}

	now := r.now()
	if occupants > 0 {
		// every change to a non-zero count opens a new occupied period
		if elapsed := now.Sub(r.lastUnoccupied); elapsed > 0 {
			r.totalOccupied += elapsed
		}
		r.totalBookings++
	} else {
		r.lastUnoccupied = now
	}
	r.logger.Debug().Int("from", r.occupants).Int("to", occupants).Msg("occupancy changed")
	r.occupants = occupants

	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	return true, observers, nil
}

func (r *Room) IsOccupied() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.occupants > 0
}

// UnoccupiedDuration is the time since the room last dropped to zero
// occupants, regardless of whether it is occupied now.
func (r *Room) UnoccupiedDuration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now().Sub(r.lastUnoccupied)
}

// Book stores the booking unconditionally. Conflict checks belong to
// BookingCommand.
func (r *Room) Book(start string, durationMinutes int) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.book(start, durationMinutes)
}

func (r *Room) book(start string, durationMinutes int) error {
	if start == "" || durationMinutes <= 0 {
		return fmt.Errorf("room %d: start %q duration %d: %w", r.id, start, durationMinutes, ErrInvalidBooking)
	}
	r.mu.Lock()
	r.booking = &Booking{Start: start, DurationMinutes: durationMinutes}
	r.totalBookings++
	r.mu.Unlock()

	r.logger.Info().Str("start", start).Int("duration", durationMinutes).
		Msgf("Room %d booked from %s for %d minutes.", r.id, start, durationMinutes)
	return nil
}

// CancelBooking drops the booking and empties the room.
func (r *Room) CancelBooking() error {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.cancelBooking()
}

func (r *Room) cancelBooking() error {
	r.mu.Lock()
	r.booking = nil
	occupied := r.occupants > 0
	r.mu.Unlock()

	if occupied {
		if err := r.setOccupancy(0); err != nil {
			return err
		}
	}
	r.logger.Info().Msgf("Booking for Room %d cancelled successfully.", r.id)
	return nil
}

// IsBooked reports whether the room holds a booking or has people in it.
func (r *Room) IsBooked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.booking != nil || r.occupants > 0
}

func (r *Room) TotalBookings() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalBookings
}

func (r *Room) TotalOccupiedTime() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalOccupied
}

func (r *Room) Stats() RoomStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := RoomStats{
		ID:                r.id,
		Capacity:          r.capacity,
		Occupants:         r.occupants,
		Occupied:          r.occupants > 0,
		Booked:            r.booking != nil || r.occupants > 0,
		LastUnoccupiedAt:  r.lastUnoccupied,
		TotalBookings:     r.totalBookings,
		TotalOccupiedTime: r.totalOccupied,
		TotalOccupiedMs:   r.totalOccupied.Milliseconds(),
	}
	if r.booking != nil {
		b := *r.booking
		s.Booking = &b
	}
	return s
}

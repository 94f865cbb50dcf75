package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elijahnyp/smart_office/state"
	. "github.com/elijahnyp/smart_office/util"
)

var (
	ErrAccessDenied   = errors.New("access denied")
	ErrMalformedInput = errors.New("malformed input")
)

// Session is one interactive console login. Rooms live in the registry, so
// state set up by config or MQTT is visible to the console and vice versa.
type Session struct {
	registry *state.Registry
	auth     *Authenticator
	office   Office
	sensor   *state.OccupancySensor
	in       *bufio.Scanner
	out      io.Writer
}

func NewSession(registry *state.Registry, auth *Authenticator, office Office, in io.Reader, out io.Writer) *Session {
	return &Session{
		registry: registry,
		auth:     auth,
		office:   office,
		sensor:   state.NewOccupancySensor(out),
		in:       bufio.NewScanner(in),
		out:      out,
	}
}

func (s *Session) println(a ...interface{}) {
	fmt.Fprintln(s.out, a...)
}

func (s *Session) printf(format string, a ...interface{}) {
	fmt.Fprintf(s.out, format, a...)
}

// readLine returns the next input line without surrounding spaces; false
// once input is exhausted.
func (s *Session) readLine() (string, bool) {
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			Logger.Warn().Msgf("reading console input: %v", err)
		}
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// Run drives the session until the user quits or input ends. It returns
// ErrAccessDenied on a failed login and ErrMalformedInput when the room
// count cannot be read.
func (s *Session) Run() error {
	if err := s.login(); err != nil {
		return err
	}
	if err := s.configureRooms(); err != nil {
		return err
	}
	if !s.office.HasCapacities() {
		if !s.configureCapacity() {
			return nil
		}
	}
	for {
		s.println("Enter command (Add occupant / Block room / Cancel room / Room statistics): ")
		command, ok := s.readLine()
		if !ok {
			return nil
		}
		Logger.Debug().Msgf("console command %q", command)
		if !s.dispatch(command) {
			return nil
		}
		if !s.askContinue() {
			return nil
		}
	}
}

func (s *Session) login() error {
	s.println("Please log in to access booking features.")
	s.printf("Username: ")
	username, _ := s.readLine()
	s.printf("Password: ")
	password, _ := s.readLine()

	if !s.auth.Authenticate(username, password) {
		Logger.Warn().Msgf("failed login for %q", username)
		s.println("Invalid username or password. Access denied.")
		return ErrAccessDenied
	}
	Logger.Info().Msgf("%s logged in", username)
	s.printf("Login successful. Welcome, %s!\n", username)
	s.println("You now have access to booking and configuration features.")
	return nil
}

func (s *Session) configureRooms() error {
	if s.registry.Count() == 0 {
		s.println("Config room count: ")
		line, _ := s.readLine()
		count, err := strconv.Atoi(line)
		if err == nil {
			err = s.registry.Configure(count)
		}
		if err != nil {
			s.println("Invalid room count. Please enter a valid number.")
			return fmt.Errorf("room count %q: %w", line, ErrMalformedInput)
		}
	}

	rooms := s.registry.Rooms()
	names := make([]string, 0, len(rooms))
	for _, room := range rooms {
		names = append(names, fmt.Sprintf("Room %d", room.ID()))
	}
	s.printf("Office configured with %d meeting rooms: %s.\n", len(rooms), strings.Join(names, ", "))
	return nil
}

// configureCapacity handles the optional "roomId capacity" line. An empty
// line skips it. Returns false when input ended.
func (s *Session) configureCapacity() bool {
	s.println("Config room max capacity [roomId] [capacity]: ")
	line, ok := s.readLine()
	if !ok {
		return false
	}
	if line == "" {
		return true
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		s.println("Invalid input. Please enter valid roomId and capacity.")
		return true
	}
	roomID, err1 := strconv.Atoi(fields[0])
	capacity, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		s.println("Invalid input. Please enter valid roomId and capacity.")
		return true
	}
	s.setCapacity(roomID, capacity)
	return true
}

func (s *Session) setCapacity(roomID, capacity int) bool {
	room, err := s.registry.Room(roomID)
	if err != nil {
		s.println("Invalid room ID. Room does not exist.")
		return false
	}
	if err := room.SetCapacity(capacity); err != nil {
		Logger.Debug().Msgf("set capacity: %v", err)
		if capacity <= 0 {
			s.println("Invalid capacity. Please enter a valid positive number.")
		} else {
			s.printf("Room %d has %d occupants. Capacity cannot be lower.\n", roomID, room.Occupants())
		}
		return false
	}
	s.printf("Room %d maximum capacity set to %d.\n", roomID, capacity)
	return true
}

// dispatch runs one command. Returns false when input ended mid-command.
func (s *Session) dispatch(command string) bool {
	switch strings.ToLower(command) {
	case "add occupant":
		return s.addOccupant()
	case "block room":
		return s.blockRoom()
	case "cancel room":
		return s.cancelRoom()
	case "room statistics":
		s.statistics()
	default:
		s.println("Unknown command.")
	}
	return true
}

func (s *Session) lookup(roomID int) (*state.Room, bool) {
	room, err := s.registry.Room(roomID)
	if err != nil {
		s.printf("Room %d does not exist.\n", roomID)
		return nil, false
	}
	return room, true
}

func (s *Session) addOccupant() bool {
	s.println("Add occupant [roomId] [occupants]: ")
	line, ok := s.readLine()
	if !ok {
		return false
	}
	fields := strings.Fields(line)
	var roomID, occupants int
	var err error
	if len(fields) == 2 {
		if roomID, err = strconv.Atoi(fields[0]); err == nil {
			occupants, err = strconv.Atoi(fields[1])
		}
	}
	if len(fields) != 2 || err != nil {
		s.println("Invalid input. Please provide valid roomId and number of occupants.")
		return true
	}

	room, found := s.lookup(roomID)
	if !found {
		return true
	}

	if room.Capacity() <= 0 {
		s.printf("Room %d has not been configured with a capacity. Please set the capacity first.\n", roomID)
		s.printf("Enter maximum capacity for Room %d: ", roomID)
		line, ok := s.readLine()
		if !ok {
			return false
		}
		capacity, err := strconv.Atoi(line)
		if err != nil {
			s.println("Invalid input. Please enter a valid capacity.")
			return true
		}
		if !s.setCapacity(roomID, capacity) {
			return true
		}
	}

	switch {
	case occupants < 0:
		s.println("Invalid input. Occupants cannot be negative.")
	case occupants > room.Capacity():
		s.printf("Room %d occupancy exceeds maximum capacity.\n", roomID)
	default:
		room.AddObserver(s.sensor)
		if err := room.SetOccupancy(occupants); err != nil {
			Logger.Warn().Msgf("console occupancy update: %v", err)
			s.printf("Could not update Room %d: %v\n", roomID, err)
			return true
		}
		if occupants == 0 {
			s.printf("Room %d is now unoccupied. AC and lights turned off.\n", roomID)
		}
	}
	return true
}

func (s *Session) blockRoom() bool {
	s.println("Block room [roomId] [startTime] [duration]: ")
	line, ok := s.readLine()
	if !ok {
		return false
	}
	fields := strings.Fields(line)
	var roomID, duration int
	var err error
	if len(fields) == 3 {
		if roomID, err = strconv.Atoi(fields[0]); err == nil {
			duration, err = strconv.Atoi(fields[2])
		}
	}
	if len(fields) != 3 || err != nil {
		s.println("Invalid input. Please provide valid roomId, start time, and duration.")
		return true
	}

	room, found := s.lookup(roomID)
	if !found {
		return true
	}

	err = state.NewBookingCommand(room, fields[1], duration).Execute()
	switch {
	case err == nil:
		s.printf("Room %d booked from %s for %d minutes.\n", roomID, fields[1], duration)
	case errors.Is(err, state.ErrAlreadyBooked):
		s.printf("Room %d is already booked during this time. Cannot book.\n", roomID)
	case errors.Is(err, state.ErrInvalidBooking):
		s.println("Invalid input. Please provide valid roomId, start time, and duration.")
	default:
		Logger.Warn().Msgf("console booking: %v", err)
		s.printf("Could not book Room %d: %v\n", roomID, err)
	}
	return true
}

func (s *Session) cancelRoom() bool {
	s.println("Cancel room [roomId]:")
	line, ok := s.readLine()
	if !ok {
		return false
	}
	roomID, err := strconv.Atoi(line)
	if err != nil {
		s.println("Invalid input. Please provide a valid roomId.")
		return true
	}

	room, found := s.lookup(roomID)
	if !found {
		return true
	}

	err = state.NewCancellationCommand(room).Execute()
	switch {
	case err == nil:
		s.printf("Booking for Room %d cancelled successfully.\n", roomID)
	case errors.Is(err, state.ErrNotBooked):
		s.printf("Room %d is not booked. Cannot cancel booking.\n", roomID)
	default:
		Logger.Warn().Msgf("console cancellation: %v", err)
		s.printf("Could not cancel booking for Room %d: %v\n", roomID, err)
	}
	return true
}

func (s *Session) statistics() {
	s.println("Room Usage Statistics:")
	for _, stats := range s.registry.Stats() {
		s.printf("Room %d:\n", stats.ID)
		s.printf("  Total bookings: %d\n", stats.TotalBookings)
		s.printf("  Total occupied time: %d ms\n", stats.TotalOccupiedMs)
	}
}

// askContinue returns false when the user answers no or input ends.
func (s *Session) askContinue() bool {
	for {
		s.printf("Do you want to continue? (yes/no): ")
		answer, ok := s.readLine()
		if !ok {
			return false
		}
		switch strings.ToLower(answer) {
		case "yes":
			return true
		case "no":
			s.println("Exiting the program.")
			return false
		default:
			s.println("Invalid input. Please enter 'yes' or 'no'.")
		}
	}
}

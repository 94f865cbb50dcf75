package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/smart_office/state"
	. "github.com/elijahnyp/smart_office/util"
)

// Mock MQTT client for testing
type MockMQTTClient struct {
	publishErr   error
	publishCalls []PublishCall
	connected    bool
	mu           sync.Mutex
}

type PublishCall struct {
	Payload interface{}
	Topic   string
}

func (m *MockMQTTClient) IsConnected() bool      { return m.connected }
func (m *MockMQTTClient) IsConnectionOpen() bool { return m.connected }
func (m *MockMQTTClient) Connect() MQTT.Token    { return &MockToken{} }
func (m *MockMQTTClient) Disconnect(quiesce uint) {}
func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishCalls = append(m.publishCalls, PublishCall{Topic: topic, Payload: payload})
	return &MockToken{err: m.publishErr}
}
func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	return &MockToken{}
}
func (m *MockMQTTClient) SubscribeMultiple(filters map[string]byte, callback MQTT.MessageHandler) MQTT.Token {
	return &MockToken{}
}
func (m *MockMQTTClient) Unsubscribe(topics ...string) MQTT.Token             { return &MockToken{} }
func (m *MockMQTTClient) AddRoute(topic string, callback MQTT.MessageHandler) {}
func (m *MockMQTTClient) OptionsReader() MQTT.ClientOptionsReader             { return MQTT.ClientOptionsReader{} }

func (m *MockMQTTClient) published() []PublishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishCall(nil), m.publishCalls...)
}

type MockToken struct {
	err error
}

func (m *MockToken) Wait() bool                     { return true }
func (m *MockToken) WaitTimeout(time.Duration) bool { return true }
func (m *MockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *MockToken) Error() error { return m.err }

type MockMessage struct {
	topic   string
	payload []byte
}

func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Qos() byte         { return 0 }
func (m *MockMessage) Retained() bool    { return false }
func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) MessageID() uint16 { return 0 }
func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Ack()              {}

func testBridge(t *testing.T, client MQTT.Client) (*OfficeBridge, *state.Registry) {
	t.Helper()
	office := Office{
		Rooms: []Room{
			{
				Id:              1,
				Capacity:        6,
				Occupancy_topic: "office/room_1/occupancy",
				Command_topic:   "office/room_1/command",
				Count_topics:    []string{"office/room_1/count"},
			},
			{
				Id:           2,
				Capacity:     4,
				Count_topics: []string{"office/room_2/count"},
			},
		},
	}
	registry := state.NewRegistry()
	if err := office.Populate(registry); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	bridge := NewOfficeBridge(registry, office)
	bridge.client = func() MQTT.Client { return client }
	return bridge, registry
}

func TestOfficeBridgeCountMessages(t *testing.T) {
	bridge, registry := testBridge(t, &MockMQTTClient{})
	room, _ := registry.Room(1) //nolint:errcheck // room exists

	tests := []struct {
		name     string
		payload  string
		expected int
	}{
		{"Sets occupancy", "3", 3},
		{"Trims whitespace", " 5\n", 5},
		{"Rejects non-integer", "many", 5},
		{"Rejects over capacity", "7", 5},
		{"Rejects negative", "-1", 5},
		{"Empties room", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge.Receive(nil, &MockMessage{topic: "office/room_1/count", payload: []byte(tt.payload)})
			if room.Occupants() != tt.expected {
				t.Errorf("Occupants() = %d, expected %d", room.Occupants(), tt.expected)
			}
		})
	}
}

func TestOfficeBridgeCommandMessages(t *testing.T) {
	bridge, registry := testBridge(t, &MockMQTTClient{})
	room, _ := registry.Room(1) //nolint:errcheck // room exists

	bridge.Receive(nil, &MockMessage{topic: "office/room_1/command", payload: []byte("book 09:30 45")})
	booking, ok := room.Booking()
	if !ok || booking.Start != "09:30" || booking.DurationMinutes != 45 {
		t.Fatalf("Booking() = %+v, %v, expected 09:30 for 45", booking, ok)
	}

	// already booked, the first booking stands
	bridge.Receive(nil, &MockMessage{topic: "office/room_1/command", payload: []byte("book 11:00 15")})
	booking, _ = room.Booking()
	if booking.Start != "09:30" {
		t.Errorf("Booking().Start = %s, expected 09:30", booking.Start)
	}

	bridge.Receive(nil, &MockMessage{topic: "office/room_1/command", payload: []byte("CANCEL")})
	if room.IsBooked() {
		t.Error("IsBooked() should be false after cancel command")
	}
}

func TestOfficeBridgeHandleCommandErrors(t *testing.T) {
	bridge, _ := testBridge(t, &MockMQTTClient{})

	tests := []struct {
		name    string
		payload string
		roomID  int
		target  error
	}{
		{"Empty", "", 1, nil},
		{"Unknown verb", "reserve 10:00 30", 1, nil},
		{"Missing duration", "book 10:00", 1, nil},
		{"Bad duration", "book 10:00 soon", 1, nil},
		{"Zero duration", "book 10:00 0", 1, state.ErrInvalidBooking},
		{"Cancel free room", "cancel", 1, state.ErrNotBooked},
		{"Unknown room", "cancel", 9, state.ErrRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bridge.handleCommand(tt.roomID, tt.payload)
			if err == nil {
				t.Fatal("handleCommand() should return an error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("handleCommand() error = %v, expected %v", err, tt.target)
			}
		})
	}
}

func TestOfficeBridgePublishesOccupancy(t *testing.T) {
	client := &MockMQTTClient{connected: true}
	bridge, registry := testBridge(t, client)
	registry.AttachAll(bridge)
	room, _ := registry.Room(1) //nolint:errcheck // room exists

	if err := room.SetOccupancy(2); err != nil {
		t.Fatalf("SetOccupancy() error = %v", err)
	}
	if err := room.SetOccupancy(2); err != nil {
		t.Fatalf("SetOccupancy() error = %v", err)
	}
	if err := room.SetOccupancy(0); err != nil {
		t.Fatalf("SetOccupancy() error = %v", err)
	}

	calls := client.published()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 publishes, got %d: %+v", len(calls), calls)
	}
	expected := []string{"true", "false"}
	for i, call := range calls {
		if call.Topic != "office/room_1/occupancy" {
			t.Errorf("publish %d topic = %s, expected office/room_1/occupancy", i, call.Topic)
		}
		if call.Payload != expected[i] {
			t.Errorf("publish %d payload = %v, expected %s", i, call.Payload, expected[i])
		}
	}
}

func TestOfficeBridgeSkipsRoomsWithoutTopic(t *testing.T) {
	client := &MockMQTTClient{connected: true}
	bridge, registry := testBridge(t, client)
	registry.AttachAll(bridge)
	room, _ := registry.Room(2) //nolint:errcheck // room exists

	if err := room.SetOccupancy(1); err != nil {
		t.Fatalf("SetOccupancy() error = %v", err)
	}
	if len(client.published()) != 0 {
		t.Errorf("Expected no publishes for a room without occupancy topic, got %d", len(client.published()))
	}
}

func TestOfficeBridgeOfflineAndPublishError(t *testing.T) {
	offline := &MockMQTTClient{}
	bridge, registry := testBridge(t, offline)
	room, _ := registry.Room(1) //nolint:errcheck // room exists
	if err := bridge.Update(room); err != nil {
		t.Errorf("Update() while offline error = %v, expected nil", err)
	}

	failing := &MockMQTTClient{connected: true, publishErr: errors.New("broker gone")}
	bridge.client = func() MQTT.Client { return failing }
	registry.AttachAll(bridge)
	err := room.SetOccupancy(1)
	if err == nil {
		t.Error("SetOccupancy() should surface the publish failure")
	}
	if room.Occupants() != 1 {
		t.Errorf("Occupants() = %d, the change stands even when an observer fails", room.Occupants())
	}
}

func TestOfficeBridgeAdvertise(t *testing.T) {
	Config.Set("ha.discovery", true)
	Config.Set("mqtt.availability_topic", "office/online")
	client := &MockMQTTClient{connected: true}
	bridge, _ := testBridge(t, client)

	bridge.Advertise(client)

	calls := client.published()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 advertisement, got %d", len(calls))
	}
	if calls[0].Topic != "homeassistant/binary_sensor/room_1/occupancy/config" {
		t.Errorf("Topic = %s", calls[0].Topic)
	}

	Config.Set("ha.discovery", false)
	defer Config.Set("ha.discovery", true)
	bridge.Advertise(client)
	if len(client.published()) != 1 {
		t.Error("Advertise should be a no-op with discovery disabled")
	}
}

func TestOnlinePinger(t *testing.T) {
	Config.Set("mqtt.availability_topic", "office/online")
	client := &MockMQTTClient{connected: true}
	Client = client
	defer func() { Client = nil }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		OnlinePinger(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	<-done

	calls := client.published()
	if len(calls) < 2 {
		t.Fatalf("Expected at least 2 online messages, got %d", len(calls))
	}
	for _, call := range calls {
		if call.Topic != "office/online" || call.Payload != "online" {
			t.Errorf("Expected online to office/online, got %v to %s", call.Payload, call.Topic)
		}
	}
}

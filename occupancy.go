package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/smart_office/state"
	. "github.com/elijahnyp/smart_office/util"
)

// OfficeBridge connects the rooms to MQTT. Count and command topics drive
// the rooms; as a room observer it mirrors occupancy onto the room's
// occupancy topic.
type OfficeBridge struct {
	registry *state.Registry
	client   func() MQTT.Client

	mu     sync.RWMutex
	office Office
}

func NewOfficeBridge(registry *state.Registry, office Office) *OfficeBridge {
	return &OfficeBridge{
		registry: registry,
		office:   office,
		client:   func() MQTT.Client { return Client },
	}
}

func (b *OfficeBridge) SetOffice(office Office) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.office = office
}

func (b *OfficeBridge) Office() Office {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.office
}

// Update publishes "true" or "false" for the room. Rooms without an
// occupancy topic and a disconnected client are skipped.
func (b *OfficeBridge) Update(room *state.Room) error {
	topic := b.Office().FindOccupancyTopicByRoom(room.ID())
	if topic == "" {
		return nil
	}
	client := b.client()
	if client == nil || !client.IsConnected() {
		Logger.Debug().Msgf("mqtt offline, not publishing room %d occupancy", room.ID())
		return nil
	}
	return Publish(client, topic, strconv.FormatBool(room.IsOccupied()))
}

// Subscribe replaces the registered subscriptions with the office's count
// and command topics. They take effect on the next (re)connect.
func (b *OfficeBridge) Subscribe() {
	ClearMQTTSubscriptions()
	for _, topic := range b.Office().SubscribeTopics() {
		RegisterMQTTSubscription(topic, b.Receive)
	}
}

func (b *OfficeBridge) Receive(client MQTT.Client, message MQTT.Message) {
	Logger.Info().Msgf("Message Received on topic %s", message.Topic())
	office := b.Office()
	roomID := office.FindRoomByTopic(message.Topic())
	payload := strings.TrimSpace(string(message.Payload()))

	var err error
	switch office.FindTopicType(message.Topic()) {
	case COUNT:
		err = b.handleCount(roomID, payload)
	case COMMAND:
		err = b.handleCommand(roomID, payload)
	default:
		Logger.Debug().Msgf("topic %s not found in office.  Fix subscription or add to office", message.Topic())
		return
	}
	if err != nil {
		Logger.Warn().Msgf("%s: %v", message.Topic(), err)
	}
}

func (b *OfficeBridge) handleCount(roomID int, payload string) error {
	count, err := strconv.Atoi(payload)
	if err != nil {
		return fmt.Errorf("count payload %q: %w", payload, err)
	}
	room, err := b.registry.Room(roomID)
	if err != nil {
		return err
	}
	Logger.Debug().Msgf("room %d count received: %d", roomID, count)
	return room.SetOccupancy(count)
}

// handleCommand accepts "book <start> <duration>" and "cancel".
func (b *OfficeBridge) handleCommand(roomID int, payload string) error {
	room, err := b.registry.Room(roomID)
	if err != nil {
		return err
	}
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return fmt.Errorf("empty command")
	}

	var command state.Command
	switch strings.ToLower(fields[0]) {
	case "book":
		if len(fields) != 3 {
			return fmt.Errorf("command %q: expected book <start> <duration>", payload)
		}
		duration, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("command %q: duration: %w", payload, err)
		}
		command = state.NewBookingCommand(room, fields[1], duration)
	case "cancel":
		command = state.NewCancellationCommand(room)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return command.Execute()
}

// Advertise sends Home Assistant discovery messages for every room with an
// occupancy topic.
func (b *OfficeBridge) Advertise(client MQTT.Client) {
	if !Config.GetBool("ha.discovery") {
		return
	}
	if err := AdvertiseHA(b.Office().Rooms, client); err != nil {
		Logger.Error().Msgf("Error advertising to Home Assistant: %v", err)
	}
}

func OnlinePinger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if Client != nil && Client.IsConnected() {
			if err := Publish(Client, AvailabilityTopic(), "online"); err != nil {
				Logger.Error().Msgf("Error publishing online message: %v", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func HAAdvertiser(ctx context.Context, bridge *OfficeBridge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if Client != nil && Client.IsConnected() {
				Logger.Debug().Msg("Advertising Home Assistant discovery messages")
				bridge.Advertise(Client)
			}
		}
	}
}

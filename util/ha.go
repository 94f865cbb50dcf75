package util

import (
	"encoding/json"
	"errors"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`                 // : "office/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name        string   `json:"name"` // : "office_controller"
	Identifiers []string `json:"ids"`  // : ["office_controller"]
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`
	UniqueID                     string                         `json:"uniq_id"`     // "occupancy_sensor-room_1"
	Name                         string                         `json:"name"`        // : "room_1"
	StateTopic                   string                         `json:"state_topic"` // : "office/room_1/occupancy"
	PayloadOn                    string                         `json:"payload_on"`  // : "true"
	PayloadOff                   string                         `json:"payload_off"`
	DeviceClass                  string                         `json:"device_class"` // : "occupancy"
	Platform                     string                         `json:"platform"`     // "binary_sensor"
	Qos                          int                            `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

func ConstructHAAdvertisement(name, stateTopic, availabilityTopic string) HAAdvertisement {
	return HAAdvertisement{
		Name:       name,
		StateTopic: stateTopic,
		PayloadOn:  "true",
		PayloadOff: "false",
		HAAvdvertisementAvailability: []HAAvdvertisementAvailability{
			{
				Topic:               availabilityTopic,
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:         0,
		UniqueID:    "occupancy_sensor-" + name,
		DeviceClass: "occupancy",
		Platform:    "binary_sensor",
		Device: HADeviceSpec{
			Name:        "office_controller",
			Identifiers: []string{"office_controller"},
		},
	}
}

func HADiscoveryTopic(name string) string {
	return "homeassistant/binary_sensor/" + name + "/occupancy/config"
}

// AdvertiseHA publishes a discovery message for every room that reports
// occupancy over MQTT.
func AdvertiseHA(rooms []Room, client MQTT.Client) error {
	var errs []error
	for _, room := range rooms {
		if room.Occupancy_topic == "" {
			continue
		}
		ha := ConstructHAAdvertisement(room.DisplayName(), room.Occupancy_topic, AvailabilityTopic())
		if err := Publish(client, HADiscoveryTopic(room.DisplayName()), ha.ToJson()); err != nil {
			Logger.Error().Msgf("Error Publishing: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

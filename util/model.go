package util

import (
	"errors"
	"fmt"

	"github.com/elijahnyp/smart_office/state"
)

const ( // message types
	COUNT = iota
	COMMAND
	OCCUPANCY
)

// Office is the static description of the office as found under the
// "office" config key.
type Office struct {
	Rooms     []Room `mapstructure:"rooms"`
	RoomCount int    `mapstructure:"room_count"`
}

type Room struct {
	Name            string   `mapstructure:"name"`
	Occupancy_topic string   `mapstructure:"occupancy_topic"`
	Command_topic   string   `mapstructure:"command_topic"`
	Count_topics    []string `mapstructure:"count_topics"`
	Id              int      `mapstructure:"id"`
	Capacity        int      `mapstructure:"capacity"`
}

// DisplayName falls back to "room_<id>" for unnamed rooms.
func (r Room) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("room_%d", r.Id)
}

func (o *Office) BuildOffice() error {
	*o = Office{}
	if err := Config.UnmarshalKey("office", o); err != nil {
		Logger.Error().Msgf("error unmarshaling office: %v", err)
		return fmt.Errorf("unmarshal office: %w", err)
	}
	if n := Config.GetInt("office.room_count"); n > 0 {
		o.RoomCount = n
	}
	return nil
}

// Size is the number of rooms the office needs, 0 when nothing is
// configured.
func (o Office) Size() int {
	size := o.RoomCount
	for _, r := range o.Rooms {
		if r.Id > size {
			size = r.Id
		}
	}
	return size
}

// HasCapacities reports whether every configured room declares a capacity.
func (o Office) HasCapacities() bool {
	if len(o.Rooms) == 0 {
		return false
	}
	for _, r := range o.Rooms {
		if r.Capacity <= 0 {
			return false
		}
	}
	return true
}

// Populate creates the office rooms in the registry and applies configured
// capacities. Rooms already in the registry keep their occupancy and stats.
func (o Office) Populate(registry *state.Registry) error {
	size := o.Size()
	if size == 0 {
		return nil
	}
	if err := registry.Configure(size); err != nil {
		return err
	}
	var errs []error
	for _, r := range o.Rooms {
		if r.Capacity == 0 {
			continue
		}
		room, err := registry.Room(r.Id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if room.Capacity() == r.Capacity {
			continue
		}
		if err := room.SetCapacity(r.Capacity); err != nil {
			Logger.Warn().Msgf("keeping previous capacity for %s: %v", r.DisplayName(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o Office) FindRoomByTopic(topic string) int {
	if topic == "" {
		return 0
	}
	for _, entry := range o.Rooms {
		if entry.Occupancy_topic == topic || entry.Command_topic == topic {
			return entry.Id
		}
		for _, ct := range entry.Count_topics {
			if ct == topic {
				return entry.Id
			}
		}
	}
	return 0
}

func (o Office) FindTopicType(topic string) int {
	if topic == "" {
		return -1
	}
	for _, entry := range o.Rooms {
		if entry.Occupancy_topic == topic {
			return OCCUPANCY
		}
		if entry.Command_topic == topic {
			return COMMAND
		}
		for _, ct := range entry.Count_topics {
			if ct == topic {
				return COUNT
			}
		}
	}
	return -1
}

func (o Office) FindOccupancyTopicByRoom(id int) string {
	for _, entry := range o.Rooms {
		if entry.Id == id {
			return entry.Occupancy_topic
		}
	}
	return ""
}

func (o Office) SubscribeTopics() []string {
	var topics []string
	for _, room := range o.Rooms {
		topics = append(topics, room.Count_topics...)
		if room.Command_topic != "" {
			topics = append(topics, room.Command_topic)
		}
	}
	return topics
}

// Package realtime propagates ride and driver-location changes to
// websocket clients, other instances and out-of-process consumers.
package realtime

import (
	"encoding/json"
	"time"
)

// EventType names a realtime event. It doubles as the AMQP routing key.
type EventType string

const (
	EventRideCreated            EventType = "ride.created"
	EventRideUpdated            EventType = "ride.updated"
	EventDriverLocationsChanged EventType = "driver.locations.changed"
	EventChatMessage            EventType = "ride.chat.message"
)

// Topics clients can subscribe to.
const (
	TopicDrivers    = "drivers"
	TopicMap        = "map"
	rideTopicPrefix = "ride:"
)

// RideTopic returns the topic carrying updates for one ride.
func RideTopic(rideID string) string {
	return rideTopicPrefix + rideID
}

// Event is one change notification.
type Event struct {
	Type       EventType       `json:"type"`
	RideID     string          `json:"ride_id,omitempty"`
	DriverID   string          `json:"driver_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent builds an event, encoding payload as JSON. A payload that cannot
// be encoded is dropped and the event is still delivered.
func NewEvent(typ EventType, rideID, driverID string, payload any) Event {
	ev := Event{
		Type:       typ,
		RideID:     rideID,
		DriverID:   driverID,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// Topics returns the subscriber topics an event is delivered to.
func (e Event) Topics() []string {
	switch e.Type {
	case EventRideCreated:
		return []string{TopicDrivers, TopicMap, RideTopic(e.RideID)}
	case EventRideUpdated:
		return []string{TopicMap, RideTopic(e.RideID)}
	case EventDriverLocationsChanged:
		topics := []string{TopicDrivers, TopicMap}
		if e.RideID != "" {
			topics = append(topics, RideTopic(e.RideID))
		}
		return topics
	case EventChatMessage:
		return []string{RideTopic(e.RideID)}
	}
	return nil
}

package callslot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/platform/websocket"
)

// Event types for writes that are not status transitions.
const (
	EventCreated        = "slot.created"
	EventUpdated        = "slot.updated"
	EventDeleted        = "slot.deleted"
	EventSessionCleared = "session.cleared"
)

// Event describes one committed change to a slot or a session.
type Event struct {
	Type       string    `json:"type"`
	SlotID     uuid.UUID `json:"slot_id,omitempty"`
	SessionKey string    `json:"session_key"`
	Facility   string    `json:"facility"`
	Name       string    `json:"name,omitempty"`
	BedLabel   string    `json:"bed_label,omitempty"`
	From       Status    `json:"from,omitempty"`
	To         Status    `json:"to,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func eventFor(typ string, s *Slot, actor string) Event {
	return Event{
		Type:       typ,
		SlotID:     s.ID,
		SessionKey: s.SessionKey,
		Facility:   s.Facility,
		Name:       s.Name,
		BedLabel:   s.BedLabel,
		To:         s.Status,
		Actor:      actor,
		Timestamp:  s.UpdatedAt,
	}
}

// Notifier receives events after the write that produced them has committed.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// SessionTopic and FacilityTopic name the WebSocket topics an event is sent to.
func SessionTopic(key string) string       { return "session:" + key }
func FacilityTopic(facility string) string { return "facility:" + facility }

// HubNotifier forwards events to WebSocket clients subscribed to the
// event's session or facility topic.
type HubNotifier struct {
	pub websocket.EventPublisher
}

func NewHubNotifier(pub websocket.EventPublisher) *HubNotifier {
	return &HubNotifier{pub: pub}
}

func (n *HubNotifier) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	resourceID := ""
	if ev.SlotID != uuid.Nil {
		resourceID = ev.SlotID.String()
	}
	for _, topic := range []string{SessionTopic(ev.SessionKey), FacilityTopic(ev.Facility)} {
		err := n.pub.Publish(ctx, websocket.Event{
			Type:         ev.Type,
			Topic:        topic,
			ResourceType: "CallSlot",
			ResourceID:   resourceID,
			Timestamp:    ev.Timestamp,
			Data:         data,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// MessagePublisher sends a raw payload to a broker topic.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MQTTNotifier publishes events to "callboard/{facility}/events" for
// hardware call displays.
type MQTTNotifier struct {
	pub MessagePublisher
}

func NewMQTTNotifier(pub MessagePublisher) *MQTTNotifier {
	return &MQTTNotifier{pub: pub}
}

func MQTTTopic(facility string) string {
	return "callboard/" + facility + "/events"
}

func (n *MQTTNotifier) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.pub.Publish(ctx, MQTTTopic(ev.Facility), data)
}

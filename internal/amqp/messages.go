package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// EventType names a domain change other processes react to.
type EventType string

const (
	MovementCreated EventType = "movement.created"
	MovementUpdated EventType = "movement.updated"
	GoalChanged     EventType = "goal.changed"
)

// Event is a lightweight notification: it carries ids only and consumers
// read current state from the database.
type Event struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	GoalID    string    `json:"goal_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(t EventType, id, userID string) Event {
	return Event{
		Type:      t,
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// WithGoal returns a copy of the event tied to a goal.
func (e Event) WithGoal(goalID string) Event {
	e.GoalID = goalID
	return e
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event and rejects ones missing a type or id.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" || e.ID == "" {
		return Event{}, errors.New("event without type or id")
	}
	return e, nil
}

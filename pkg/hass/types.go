package hass

// EntityState is one entity as reported by the hub's REST states endpoint
// and inside websocket state_changed events.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// StateChangedEvent is a decoded state_changed event from the hub's event
// stream.
type StateChangedEvent struct {
	EntityID   string
	OldState   string
	NewState   string
	Attributes map[string]any
}

// ServiceCall describes one hub service invocation.
type ServiceCall struct {
	Domain      string
	Service     string
	EntityID    string
	ServiceData map[string]any
}

// websocket wire shapes

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

type subscribeEventsMessage struct {
	ID        uint64 `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

type callServiceMessage struct {
	ID          uint64            `json:"id"`
	Type        string            `json:"type"`
	Domain      string            `json:"domain"`
	Service     string            `json:"service"`
	ServiceData map[string]any    `json:"service_data,omitempty"`
	Target      callServiceTarget `json:"target"`
}

type callServiceTarget struct {
	EntityID string `json:"entity_id"`
}

type incomingMessage struct {
	ID      uint64         `json:"id"`
	Type    string         `json:"type"`
	Success *bool          `json:"success,omitempty"`
	Event   *eventEnvelope `json:"event,omitempty"`
	Error   *wsError       `json:"error,omitempty"`
}

type eventEnvelope struct {
	EventType string    `json:"event_type"`
	Data      eventData `json:"data"`
}

type eventData struct {
	EntityID string       `json:"entity_id"`
	OldState *EntityState `json:"old_state"`
	NewState *EntityState `json:"new_state"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

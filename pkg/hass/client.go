package hass

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrAuthFailed means the hub rejected the access token. Terminal: the
	// session must not be retried.
	ErrAuthFailed = errors.New("hub authentication failed")
	// ErrTooRecent means an identical service call was suppressed by the
	// cooldown window.
	ErrTooRecent    = errors.New("service called too recently")
	ErrNotConnected = errors.New("hub not connected")
)

type EventHandler func(StateChangedEvent)

// HubClient is the hub transport contract the bridge consumes: an event
// source, a command sink and an inventory fetch.
type HubClient interface {
	Connect() error
	Close() error
	Listen(handler EventHandler) error
	States() ([]EntityState, error)
	CallService(call ServiceCall) error
}

// WebsocketHubClient talks to a Home Assistant instance over its websocket
// API, with REST only for the startup inventory fetch.
type WebsocketHubClient struct {
	wsURL    string
	apiURL   string
	token    string
	cooldown time.Duration
	logger   *zap.Logger

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  uint64

	recentMu    sync.Mutex
	recentCalls map[uint64]time.Time

	httpClient *http.Client
}

// CreateWebsocketHubClient derives the websocket and REST endpoints from the
// hub base URL (e.g. http://hass.local:8123). Identical service calls within
// the cooldown window are rejected with ErrTooRecent.
func CreateWebsocketHubClient(baseURL, token string, cooldown time.Duration, logger *zap.Logger) *WebsocketHubClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	wsURL := strings.Replace(strings.Replace(baseURL, "https://", "wss://", 1), "http://", "ws://", 1)
	return &WebsocketHubClient{
		wsURL:       wsURL + "/api/websocket",
		apiURL:      baseURL + "/api",
		token:       token,
		cooldown:    cooldown,
		logger:      logger.With(zap.String("component", "hass")),
		recentCalls: make(map[uint64]time.Time),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Connect dials the websocket endpoint and runs the auth handshake.
func (c *WebsocketHubClient) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return err
	}

	var hello incomingMessage
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return err
	}
	if hello.Type != "auth_required" {
		conn.Close()
		return fmt.Errorf("unexpected handshake message %q", hello.Type)
	}
	if err := conn.WriteJSON(authMessage{Type: "auth", AccessToken: c.token}); err != nil {
		conn.Close()
		return err
	}
	var result incomingMessage
	if err := conn.ReadJSON(&result); err != nil {
		conn.Close()
		return err
	}
	if result.Type != "auth_ok" {
		conn.Close()
		return ErrAuthFailed
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.logger.Info("connected to hub", zap.String("url", c.wsURL))
	return nil
}

// Close may race the Listen pump; the pump holds its own reference, so a
// concurrent close surfaces there as a read error.
func (c *WebsocketHubClient) Close() error {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *WebsocketHubClient) connection() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// Listen subscribes to state_changed events and blocks reading the event
// stream, invoking the handler per event. It returns when the connection
// breaks; the caller owns the reconnect policy.
func (c *WebsocketHubClient) Listen(handler EventHandler) error {
	conn := c.connection()
	if conn == nil {
		return ErrNotConnected
	}
	if err := c.send(subscribeEventsMessage{
		ID:        c.messageID(),
		Type:      "subscribe_events",
		EventType: "state_changed",
	}); err != nil {
		return err
	}
	for {
		var msg incomingMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		switch msg.Type {
		case "result":
			if msg.Success != nil && !*msg.Success {
				errMsg := ""
				if msg.Error != nil {
					errMsg = msg.Error.Message
				}
				c.logger.Warn("hub rejected command",
					zap.Uint64("id", msg.ID), zap.String("error", errMsg))
			}
		case "event":
			if msg.Event == nil || msg.Event.EventType != "state_changed" {
				continue
			}
			data := msg.Event.Data
			if data.NewState == nil {
				continue
			}
			ev := StateChangedEvent{
				EntityID:   data.EntityID,
				NewState:   data.NewState.State,
				Attributes: data.NewState.Attributes,
			}
			if data.OldState != nil {
				ev.OldState = data.OldState.State
			}
			handler(ev)
		default:
			c.logger.Debug("unhandled hub message", zap.String("type", msg.Type))
		}
	}
}

// CallService sends a service call over the websocket session. The result is
// fire and forget: failures surface as logged result messages in Listen.
func (c *WebsocketHubClient) CallService(call ServiceCall) error {
	if c.connection() == nil {
		return ErrNotConnected
	}
	if !c.admitCall(call) {
		return fmt.Errorf("%w: %s.%s %s", ErrTooRecent, call.Domain, call.Service, call.EntityID)
	}
	return c.send(callServiceMessage{
		ID:          c.messageID(),
		Type:        "call_service",
		Domain:      call.Domain,
		Service:     call.Service,
		ServiceData: call.ServiceData,
		Target:      callServiceTarget{EntityID: call.EntityID},
	})
}

// States fetches the full entity inventory over REST.
func (c *WebsocketHubClient) States() ([]EntityState, error) {
	req, err := http.NewRequest(http.MethodGet, c.apiURL+"/states", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from states endpoint", resp.StatusCode)
	}
	var states []EntityState
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return nil, err
	}
	return states, nil
}

func (c *WebsocketHubClient) send(msg any) error {
	conn := c.connection()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (c *WebsocketHubClient) messageID() uint64 {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.nextID++
	return c.nextID
}

// admitCall applies the de-duplication window. The key is a hash of the
// call arguments; collisions only cause extra suppression, which is
// harmless at-least-once behavior.
func (c *WebsocketHubClient) admitCall(call ServiceCall) bool {
	if c.cooldown <= 0 {
		return true
	}
	key := callHash(call)
	now := time.Now()

	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	for k, deadline := range c.recentCalls {
		if now.After(deadline) {
			delete(c.recentCalls, k)
		}
	}
	if _, ok := c.recentCalls[key]; ok {
		return false
	}
	c.recentCalls[key] = now.Add(c.cooldown)
	return true
}

func callHash(call ServiceCall) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%v", call.Domain, call.Service, call.EntityID, call.ServiceData)
	return h.Sum64()
}

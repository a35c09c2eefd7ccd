package hass

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAdmitCallCooldownWindow(t *testing.T) {
	c := CreateWebsocketHubClient("http://localhost:8123", "token", 50*time.Millisecond, zap.NewNop())
	call := ServiceCall{Domain: "light", Service: "turn_on", EntityID: "light.kitchen"}

	assert.True(t, c.admitCall(call))
	assert.False(t, c.admitCall(call), "identical call inside the window must be suppressed")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, c.admitCall(call), "window expiry must admit the call again")
}

func TestAdmitCallDistinguishesArguments(t *testing.T) {
	c := CreateWebsocketHubClient("http://localhost:8123", "token", time.Minute, zap.NewNop())

	assert.True(t, c.admitCall(ServiceCall{Domain: "light", Service: "turn_on", EntityID: "light.kitchen"}))
	assert.True(t, c.admitCall(ServiceCall{Domain: "light", Service: "turn_off", EntityID: "light.kitchen"}))
	assert.True(t, c.admitCall(ServiceCall{Domain: "light", Service: "turn_on", EntityID: "light.garage"}))
	assert.True(t, c.admitCall(ServiceCall{
		Domain: "light", Service: "turn_on", EntityID: "light.kitchen",
		ServiceData: map[string]any{"brightness": 128},
	}))
}

func TestAdmitCallDisabledWhenNoCooldown(t *testing.T) {
	c := CreateWebsocketHubClient("http://localhost:8123", "token", 0, zap.NewNop())
	call := ServiceCall{Domain: "switch", Service: "turn_on", EntityID: "switch.heater"}
	assert.True(t, c.admitCall(call))
	assert.True(t, c.admitCall(call))
}

func TestCallServiceRequiresConnection(t *testing.T) {
	c := CreateWebsocketHubClient("http://localhost:8123", "token", time.Second, zap.NewNop())
	err := c.CallService(ServiceCall{Domain: "light", Service: "turn_on", EntityID: "light.kitchen"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectAuthRejected(t *testing.T) {
	require := require.New(t)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(err)
		defer conn.Close()
		require.NoError(conn.WriteJSON(map[string]any{"type": "auth_required"}))
		var auth authMessage
		require.NoError(conn.ReadJSON(&auth))
		require.NoError(conn.WriteJSON(map[string]any{"type": "auth_invalid"}))
	}))
	defer server.Close()

	c := CreateWebsocketHubClient(server.URL, "bad-token", time.Second, zap.NewNop())
	err := c.Connect()
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestConnectAuthAccepted(t *testing.T) {
	require := require.New(t)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(err)
		require.NoError(conn.WriteJSON(map[string]any{"type": "auth_required"}))
		var auth authMessage
		require.NoError(conn.ReadJSON(&auth))
		require.Equal("good-token", auth.AccessToken)
		require.NoError(conn.WriteJSON(map[string]any{"type": "auth_ok"}))
	}))
	defer server.Close()

	c := CreateWebsocketHubClient(server.URL, "good-token", time.Second, zap.NewNop())
	require.NoError(c.Connect())
	require.NoError(c.Close())
}

func TestCloseDuringListenEndsPump(t *testing.T) {
	require := require.New(t)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(err)
		defer conn.Close()
		require.NoError(conn.WriteJSON(map[string]any{"type": "auth_required"}))
		var auth authMessage
		require.NoError(conn.ReadJSON(&auth))
		require.NoError(conn.WriteJSON(map[string]any{"type": "auth_ok"}))
		// stream events until the client goes away
		for {
			ev := map[string]any{
				"type": "event",
				"event": map[string]any{
					"event_type": "state_changed",
					"data": map[string]any{
						"entity_id": "light.kitchen",
						"new_state": map[string]any{"state": "on", "attributes": map[string]any{}},
					},
				},
			}
			if conn.WriteJSON(ev) != nil {
				return
			}
		}
	}))
	defer server.Close()

	c := CreateWebsocketHubClient(server.URL, "good-token", time.Second, zap.NewNop())
	require.NoError(c.Connect())

	done := make(chan error, 1)
	go func() {
		done <- c.Listen(func(StateChangedEvent) {})
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(c.Close())

	select {
	case err := <-done:
		assert.Error(t, err, "the pump must end with a read error")
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return after close")
	}

	err := c.CallService(ServiceCall{Domain: "light", Service: "turn_on", EntityID: "light.kitchen"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestStatesFetch(t *testing.T) {
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal("/api/states", r.URL.Path)
		require.Equal("Bearer good-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"entity_id":"light.kitchen","state":"on","attributes":{"brightness":128}}]`)
	}))
	defer server.Close()

	c := CreateWebsocketHubClient(server.URL, "good-token", time.Second, zap.NewNop())
	states, err := c.States()
	require.NoError(err)
	require.Len(states, 1)
	assert.Equal(t, "light.kitchen", states[0].EntityID)
	assert.Equal(t, "on", states[0].State)
	assert.Equal(t, float64(128), states[0].Attributes["brightness"])
}

func TestStatesAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := CreateWebsocketHubClient(server.URL, "bad-token", time.Second, zap.NewNop())
	_, err := c.States()
	assert.ErrorIs(t, err, ErrAuthFailed)
}

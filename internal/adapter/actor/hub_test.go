package actor

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/semjef/ha-salute-bridge/internal/core/domain"
	"github.com/semjef/ha-salute-bridge/internal/registry"
	"github.com/semjef/ha-salute-bridge/pkg/hass"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hubParentHarness stands in for the master: it spawns the hub actor as a
// child and records what the hub forwards upward.
type hubParentHarness struct {
	client *hass.TestHubClient
	reg    *registry.Registry
	logger *zap.Logger

	mu       sync.Mutex
	child    *actor.PID
	forwards []any
}

func (h *hubParentHarness) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		child := ctx.Spawn(actor.PropsFromProducer(func() actor.Actor {
			return NewHubActor(h.client, h.reg, h.logger)
		}))
		h.mu.Lock()
		h.child = child
		h.mu.Unlock()
	case domain.PushConfigRequest, domain.HubStateChangedEvent:
		h.mu.Lock()
		h.forwards = append(h.forwards, msg)
		h.mu.Unlock()
	}
}

func (h *hubParentHarness) childPID() *actor.PID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.child
}

func (h *hubParentHarness) forwarded() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]any(nil), h.forwards...)
}

func TestHubActorIgnoresStalePumpMessages(t *testing.T) {

	client := hass.CreateTestHubClient([]hass.EntityState{
		{EntityID: "light.kitchen", State: "on", Attributes: map[string]any{}},
	})
	logger := zap.NewNop()
	reg := registry.NewRegistry(filepath.Join(t.TempDir(), "devices.json"), logger)

	as := actor.NewActorSystem()
	context := as.Root
	harness := &hubParentHarness{client: client, reg: reg, logger: logger}
	parent := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return harness }))

	time.Sleep(1 * time.Second)
	child := harness.childPID()
	require.NotNil(t, child)

	// a leftover message from a previous connection must not restart the actor
	context.Send(child, hubConnectionLost{session: 0, err: errors.New("read: connection reset")})
	time.Sleep(500 * time.Millisecond)

	res, err := context.RequestFuture(child, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, resp.Healthy)

	// the live pump still delivers
	client.EmitEvent(hass.StateChangedEvent{EntityID: "light.kitchen", NewState: "off"})
	time.Sleep(500 * time.Millisecond)
	found := false
	for _, fwd := range harness.forwarded() {
		if ev, ok := fwd.(domain.HubStateChangedEvent); ok && ev.NewState == "off" {
			found = true
		}
	}
	assert.True(t, found, "current-session events must keep flowing")

	context.Stop(parent)
	as.Shutdown()
}

func TestDiscoverDeviceCategories(t *testing.T) {
	require := require.New(t)

	device, ok := discoverDevice(hass.EntityState{
		EntityID: "light.kitchen",
		State:    "on",
		Attributes: map[string]any{
			"friendly_name": "Kitchen",
			"brightness":    float64(128),
			"icon":          "mdi:lightbulb",
		},
	})
	require.True(ok)
	assert.Equal(t, domain.CATEGORY_LIGHT, device.Category)
	assert.Equal(t, "Kitchen", device.Name)
	assert.Equal(t, float64(128), device.Attributes[domain.ATTR_BRIGHTNESS])
	assert.NotContains(t, device.Attributes, "icon")

	_, ok = discoverDevice(hass.EntityState{EntityID: "switch.heater", State: "off"})
	assert.True(t, ok)
	_, ok = discoverDevice(hass.EntityState{EntityID: "script.morning", State: "off"})
	assert.True(t, ok)
	_, ok = discoverDevice(hass.EntityState{EntityID: "input_boolean.scene", State: "off"})
	assert.True(t, ok)
	_, ok = discoverDevice(hass.EntityState{EntityID: "climate.bedroom", State: "heat"})
	assert.True(t, ok)
}

func TestDiscoverDeviceSensorsNeedTemperatureClass(t *testing.T) {
	device, ok := discoverDevice(hass.EntityState{
		EntityID:   "sensor.hall_temp",
		State:      "21.5",
		Attributes: map[string]any{"device_class": "temperature"},
	})
	require.True(t, ok)
	assert.Equal(t, domain.CATEGORY_SENSOR, device.Category)

	_, ok = discoverDevice(hass.EntityState{
		EntityID:   "sensor.humidity",
		State:      "40",
		Attributes: map[string]any{"device_class": "humidity"},
	})
	assert.False(t, ok)
}

func TestDiscoverDeviceRejectsUnbridgeable(t *testing.T) {
	_, ok := discoverDevice(hass.EntityState{EntityID: "media_player.tv", State: "idle"})
	assert.False(t, ok)
	_, ok = discoverDevice(hass.EntityState{EntityID: "not-an-entity-id", State: "on"})
	assert.False(t, ok)
}

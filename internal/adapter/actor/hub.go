package actor

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/semjef/ha-salute-bridge/internal/core/domain"
	"github.com/semjef/ha-salute-bridge/internal/registry"
	"github.com/semjef/ha-salute-bridge/internal/translator"
	"github.com/semjef/ha-salute-bridge/internal/util/actorutil"
	"github.com/semjef/ha-salute-bridge/pkg/hass"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// HubActor owns the hub session. Its mailbox is the hub-bound queue:
// SendHubCommandRequest messages pile up here and are executed one at a
// time, so a command that hits the service cooldown never stalls the queue.
type HubActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   hass.HubClient
	registry *registry.Registry
	session  uint64
	logger   *zap.Logger
}

// hubSessions numbers hub connections across actor incarnations. Messages
// from a previous incarnation's pump carry the old number and are dropped
// instead of triggering a spurious restart.
var hubSessions atomic.Uint64

type hubInventoryLoaded struct {
	session uint64
	states  []hass.EntityState
}

type hubEventReceived struct {
	session uint64
	event   hass.StateChangedEvent
}

type hubConnectionLost struct {
	session uint64
	err     error
}

func NewHubActor(client hass.HubClient, reg *registry.Registry, zlogger *zap.Logger) *HubActor {
	act := &HubActor{
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		client:   client,
		registry: reg,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_HUB, zlogger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HubActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HubActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hub@starting started")

		if err := state.client.Connect(); err != nil {
			if errors.Is(err, hass.ErrAuthFailed) {
				// a rejected token will not fix itself on retry
				state.logger.Error("hub@starting authentication rejected, stopping", zap.Error(err))
				ctx.Stop(ctx.Self())
				return
			}
			panic(err)
		}

		state.session = hubSessions.Add(1)
		session := state.session

		// start the event pump before taking the inventory snapshot so no
		// change between the two is lost
		self := ctx.Self()
		root := ctx.ActorSystem().Root
		go func() {
			err := state.client.Listen(func(ev hass.StateChangedEvent) {
				root.Send(self, hubEventReceived{session: session, event: ev})
			})
			root.Send(self, hubConnectionLost{session: session, err: err})
		}()

		actorutil.NewBackgroundTask(ctx, state.loadInventory).
			WithTimeout(15 * time.Second).
			OnError(func(err error) {
				ctx.Send(self, hubConnectionLost{session: session, err: err})
			}).
			OnSuccess(func(res hubInventoryLoaded) {
				res.session = session
				ctx.Send(self, res)
			}).Run()
	case hubInventoryLoaded:
		if msg.session != state.session {
			state.logger.Debug("hub@starting stale inventory dropped", zap.Uint64("session", msg.session))
			return
		}
		state.logger.Debug("hub@starting inventory loaded", zap.Int("entities", len(msg.states)))
		state.mergeInventory(msg.states)
		// a fresh inventory may have added devices, advertise the config
		ctx.Send(ctx.Parent(), domain.PushConfigRequest{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case hubConnectionLost:
		if msg.session != state.session {
			state.logger.Debug("hub@starting stale connection loss dropped", zap.Uint64("session", msg.session))
			return
		}
		state.logger.Error("hub@starting connection lost", zap.Error(msg.err))
		panic(msg.err)
	case *actor.Restarting:
		_ = state.client.Close()
	default:
		state.logger.Debug("hub@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HubActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("hub@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HUB,
			Healthy: true,
			State:   "idle",
		})
	case domain.SendHubCommandRequest:
		state.logger.Debug("hub@default SendHubCommandRequest", zap.String("entity_id", msg.EntityID))
		state.sendCommand(ctx, msg.EntityID)
	case hubEventReceived:
		if msg.session != state.session {
			state.logger.Debug("hub@default stale event dropped", zap.Uint64("session", msg.session))
			return
		}
		ctx.Send(ctx.Parent(), domain.HubStateChangedEvent{
			EntityID:   msg.event.EntityID,
			OldState:   msg.event.OldState,
			NewState:   msg.event.NewState,
			Attributes: msg.event.Attributes,
		})
	case hubConnectionLost:
		if msg.session != state.session {
			state.logger.Debug("hub@default stale connection loss dropped", zap.Uint64("session", msg.session))
			return
		}
		state.logger.Error("hub@default connection lost", zap.Error(msg.err))
		panic(msg.err)
	case *actor.Restarting:
		_ = state.client.Close()
	case *actor.Stopping:
		_ = state.client.Close()
	default:
		state.logger.Debug("hub@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HubActor) sendCommand(ctx actor.Context, entityID string) {
	device, ok := state.registry.Get(entityID)
	if !ok {
		state.logger.Warn("hub@default command for unknown device", zap.String("entity_id", entityID))
		return
	}
	call, ok := translator.HubCall(device)
	if !ok {
		state.logger.Debug("hub@default no service mapping, dropping command",
			zap.String("entity_id", entityID), zap.String("category", device.Category))
		return
	}
	actorutil.NewBackgroundTaskErr(ctx, func() error {
		return state.callService(call)
	}).WithTimeout(5 * time.Second).
		OnError(func(err error) {
			if errors.Is(err, hass.ErrTooRecent) {
				state.logger.Debug("hub@default duplicate command suppressed",
					zap.String("entity_id", entityID))
			} else {
				state.logger.Error("hub@default command failed",
					zap.String("entity_id", entityID), zap.Error(err))
			}
		}).Run()
}

func (state *HubActor) callService(call translator.HubServiceCall) error {
	err := state.client.CallService(hass.ServiceCall{
		Domain:      call.Domain,
		Service:     call.Service,
		EntityID:    call.EntityID,
		ServiceData: call.ServiceData,
	})
	if err != nil && !errors.Is(err, hass.ErrTooRecent) {
		logger.Error(err)
	}
	return err
}

func (state *HubActor) loadInventory() (*hubInventoryLoaded, error) {
	states, err := state.client.States()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &hubInventoryLoaded{states: states}, nil
}

// mergeInventory folds the hub's entity snapshot into the registry. New
// devices come in disabled so nothing is exposed to the gateway before the
// operator opts it in.
func (state *HubActor) mergeInventory(states []hass.EntityState) {
	changed := false
	for _, st := range states {
		device, ok := discoverDevice(st)
		if !ok {
			continue
		}
		patch := domain.DevicePatch{
			Category:   &device.Category,
			State:      &device.State,
			Attributes: &device.Attributes,
		}
		if _, known := state.registry.Get(device.EntityID); !known && device.Name != "" {
			// seed the display name from the hub, renames stick afterwards
			patch.Name = &device.Name
		}
		state.registry.Update(device.EntityID, patch)
		changed = true
	}
	if changed {
		if err := state.registry.Save(); err != nil {
			state.logger.Error("hub@starting registry save failed", zap.Error(err))
		}
	}
}

// discoverDevice decides whether a hub entity belongs in the registry and
// builds its canonical shape. Only bridgeable categories pass, and sensors
// only when they measure temperature.
func discoverDevice(st hass.EntityState) (domain.Device, bool) {
	category, _, found := strings.Cut(st.EntityID, ".")
	if !found {
		return domain.Device{}, false
	}
	switch category {
	case domain.CATEGORY_LIGHT, domain.CATEGORY_SWITCH, domain.CATEGORY_SCRIPT,
		domain.CATEGORY_INPUT_BOOLEAN, domain.CATEGORY_CLIMATE:
	case domain.CATEGORY_SENSOR:
		if cls, _ := st.Attributes["device_class"].(string); cls != "temperature" {
			return domain.Device{}, false
		}
	default:
		return domain.Device{}, false
	}
	name, _ := st.Attributes["friendly_name"].(string)
	return domain.Device{
		EntityID:   st.EntityID,
		Category:   category,
		Name:       name,
		State:      st.State,
		Attributes: translator.FilterAttributes(st.Attributes),
	}, true
}

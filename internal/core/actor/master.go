package actor

import (
	"errors"
	"fmt"
	"time"

	adactor "github.com/semjef/ha-salute-bridge/internal/adapter/actor"
	"github.com/semjef/ha-salute-bridge/internal/config"
	"github.com/semjef/ha-salute-bridge/internal/core/domain"
	"github.com/semjef/ha-salute-bridge/internal/registry"
	"github.com/semjef/ha-salute-bridge/internal/translator"
	. "github.com/semjef/ha-salute-bridge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

type HubActorProvider func() *adactor.HubActor

type GatewayActorProvider func() *adactor.GatewayActor

// BridgeMasterActor owns the device registry routing. Hub events flow in
// from the hub child, gateway commands from the gateway child; the master
// applies them to the registry and enqueues the resulting work on the
// opposite child's mailbox.
type BridgeMasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash
	stopping bool

	currentHealthCheck healthCheckResult

	registry      *registry.Registry
	endpointStore *config.EndpointStore

	hubActor             *actor.PID
	gatewayActor         *actor.PID
	hubActorProvider     HubActorProvider
	gatewayActorProvider GatewayActorProvider

	scheduler *scheduler.TimerScheduler
	logger    *zap.Logger
}

type healthCheckResult struct {
	hubActorHealthy     bool
	gatewayActorHealthy bool
	checksReceived      int
	respondTo           *actor.PID
}

type heartbeatTick struct {
}

func NewBridgeMasterActor(cfg config.Config, reg *registry.Registry, endpointStore *config.EndpointStore,
	hubActorProvider HubActorProvider, gatewayActorProvider GatewayActorProvider, logger *zap.Logger) *BridgeMasterActor {
	act := &BridgeMasterActor{
		config:               cfg,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		registry:             reg,
		endpointStore:        endpointStore,
		hubActorProvider:     hubActorProvider,
		gatewayActorProvider: gatewayActorProvider,
		logger:               ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *BridgeMasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BridgeMasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start gateway child first so hub inventory pushes land in its
		// mailbox instead of the dead letter queue
		gatewayActorPID, err := state.startGatewayActor(ctx)
		if err != nil {
			panic(err)
		}
		state.gatewayActor = gatewayActorPID

		// start hub child
		hubActorPID, err := state.startHubActor(ctx)
		if err != nil {
			panic(err)
		}
		state.hubActor = hubActorPID

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.scheduler.RequestOnce(state.heartbeatInterval(), ctx.Self(), heartbeatTick{})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BridgeMasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// Hub Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hubActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_HUB,
				Healthy: false,
			}
		})
		// Gateway Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.gatewayActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_GATEWAY,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case heartbeatTick:
		// periodic full status push keeps the gateway's device view warm
		state.logger.Debug("master@default heartbeatTick")
		ctx.Send(state.gatewayActor, domain.PushDeviceStatusRequest{})
		state.scheduler.RequestOnce(state.heartbeatInterval(), ctx.Self(), heartbeatTick{})
	case domain.HubStateChangedEvent:
		state.handleHubEvent(ctx, msg)
	case domain.GatewayCommandMessage:
		state.handleGatewayCommands(ctx, msg)
	case domain.GatewayEndpointChanged:
		if state.endpointStore.Set(msg.Endpoint) {
			state.logger.Info("master@default gateway endpoint changed", zap.String("endpoint", msg.Endpoint))
		}
	case domain.PushDeviceStatusRequest:
		ctx.Send(state.gatewayActor, msg)
	case domain.PushConfigRequest:
		ctx.Send(state.gatewayActor, msg)
	case domain.GetDevicesRequest:
		state.logger.Debug("master@default GetDevicesRequest")
		ForRequest(msg).Respond(ctx, domain.GetDevicesResponse{
			Devices: state.registry.Snapshot(),
		})
	case domain.UpdateDevicesRequest:
		state.logger.Debug("master@default UpdateDevicesRequest", zap.Int("devices", len(msg.Devices)))
		for entityID, patch := range msg.Devices {
			state.registry.Update(entityID, patch)
		}
		err := state.persistAndAdvertise(ctx)
		ForRequest(msg).Respond(ctx, domain.UpdateDevicesResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
	case domain.ToggleFeatureRequest:
		state.logger.Debug("master@default ToggleFeatureRequest",
			zap.String("entity_id", msg.EntityID), zap.String("feature", msg.Feature), zap.Bool("enabled", msg.Enabled))
		err := state.toggleFeature(ctx, msg)
		ForRequest(msg).Respond(ctx, domain.ToggleFeatureResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
	case domain.DeleteDeviceRequest:
		state.logger.Debug("master@default DeleteDeviceRequest", zap.String("entity_id", msg.EntityID))
		state.registry.Delete(msg.EntityID)
		err := state.persistAndAdvertise(ctx)
		ForRequest(msg).Respond(ctx, domain.DeleteDeviceResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
	case *actor.Stopping:
		state.stopping = true
	case *actor.Terminated:
		if state.stopping {
			// children terminate as part of our own shutdown
			return
		}
		switch msg.Who.GetId() {
		case fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_HUB):
			// hub stopped for good (auth rejected), nothing left to bridge
			state.logger.Error("master@default hub child terminated")
			panic(errors.New("hub terminated"))
		case fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_GATEWAY):
			state.logger.Error("master@default gateway child terminated")
			panic(errors.New("gateway terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BridgeMasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			if msg.Id == domain.ACTOR_ID_HUB {
				state.currentHealthCheck.hubActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_GATEWAY {
				state.currentHealthCheck.gatewayActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// handleHubEvent folds a hub state change into the registry and echoes the
// new state towards the gateway. Events for unknown or disabled devices are
// dropped here, before any payload work.
func (state *BridgeMasterActor) handleHubEvent(ctx actor.Context, msg domain.HubStateChangedEvent) {
	device, ok := state.registry.Get(msg.EntityID)
	if !ok {
		state.logger.Debug("master@default event for unknown entity", zap.String("entity_id", msg.EntityID))
		return
	}
	if !device.Enabled {
		state.logger.Debug("master@default event for disabled entity", zap.String("entity_id", msg.EntityID))
		return
	}
	state.logger.Debug("master@default HubStateChangedEvent",
		zap.String("entity_id", msg.EntityID),
		zap.String("old", msg.OldState), zap.String("new", msg.NewState))
	updated := translator.ApplyHubEvent(device, msg)
	state.registry.Update(msg.EntityID, domain.DevicePatch{
		State:      &updated.State,
		Attributes: &updated.Attributes,
	})
	ctx.Send(state.gatewayActor, domain.PushDeviceStatusRequest{EntityIDs: []string{msg.EntityID}})
}

// handleGatewayCommands applies a down/commands document: registry first so
// the echo reflects the desired state, then one hub-bound command per
// entity.
func (state *BridgeMasterActor) handleGatewayCommands(ctx actor.Context, msg domain.GatewayCommandMessage) {
	for entityID, states := range msg.Payload.Devices {
		device, ok := state.registry.Get(entityID)
		if !ok {
			state.logger.Warn("master@default command for unknown entity", zap.String("entity_id", entityID))
			continue
		}
		updated := translator.ApplyCommandStates(device, states.States, state.logger)
		state.registry.Update(entityID, domain.DevicePatch{
			State:      &updated.State,
			Attributes: &updated.Attributes,
		})
		// optimistic echo so the assistant UI settles immediately
		ctx.Send(state.gatewayActor, domain.PushDeviceStatusRequest{EntityIDs: []string{entityID}})
		ctx.Send(state.hubActor, domain.SendHubCommandRequest{EntityID: entityID})
	}
}

func (state *BridgeMasterActor) toggleFeature(ctx actor.Context, msg domain.ToggleFeatureRequest) error {
	device, ok := state.registry.Get(msg.EntityID)
	if !ok {
		return fmt.Errorf("unknown device %s", msg.EntityID)
	}
	features := make([]string, 0, len(device.Features))
	for _, f := range device.Features {
		if f != msg.Feature {
			features = append(features, f)
		}
	}
	if msg.Enabled {
		features = append(features, msg.Feature)
	}
	state.registry.Update(msg.EntityID, domain.DevicePatch{Features: &features})
	return state.persistAndAdvertise(ctx)
}

// persistAndAdvertise saves the registry and pushes a fresh config document
// so the gateway sees configuration changes without waiting for a request.
func (state *BridgeMasterActor) persistAndAdvertise(ctx actor.Context) error {
	err := state.registry.Save()
	if err != nil {
		state.logger.Error("master@default registry save failed", zap.Error(err))
	}
	ctx.Send(state.gatewayActor, domain.PushConfigRequest{})
	ctx.Send(state.gatewayActor, domain.PushDeviceStatusRequest{})
	return err
}

func (state *BridgeMasterActor) heartbeatInterval() time.Duration {
	return time.Duration(state.config.Bridge.HeartbeatIntervalMillis) * time.Millisecond
}

func (state *BridgeMasterActor) startHubActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	hubProps := actor.PropsFromProducer(func() actor.Actor {
		return state.hubActorProvider()
	}, actor.WithSupervisor(supervisor))
	hubActorPID, err := ctx.SpawnNamed(hubProps, domain.ACTOR_ID_HUB)
	if err != nil {
		return nil, err
	}

	return hubActorPID, nil
}

func (state *BridgeMasterActor) startGatewayActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	gatewayProps := actor.PropsFromProducer(func() actor.Actor {
		return state.gatewayActorProvider()
	}, actor.WithSupervisor(supervisor))
	gatewayActorPID, err := ctx.SpawnNamed(gatewayProps, domain.ACTOR_ID_GATEWAY)
	if err != nil {
		return nil, err
	}

	return gatewayActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.hubActorHealthy = false
	state.gatewayActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 2
}

func (state *healthCheckResult) allHealthy() bool {
	return state.hubActorHealthy && state.gatewayActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}

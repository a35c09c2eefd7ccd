package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/semjef/ha-salute-bridge/internal/config"
	"github.com/semjef/ha-salute-bridge/internal/core/domain"
	"github.com/semjef/ha-salute-bridge/internal/registry"
	"github.com/semjef/ha-salute-bridge/internal/salute"
	"github.com/semjef/ha-salute-bridge/internal/translator"
	"github.com/semjef/ha-salute-bridge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// GatewayActor owns the gateway MQTT session. Its mailbox is the
// gateway-bound queue: status and config push requests accumulate here while
// the session is down and are drained once it is restored. Payloads are
// built at drain time from the current registry state.
type GatewayActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   *salute.SaluteClient
	registry *registry.Registry
	catalog  translator.FeatureCatalog
	logger   *zap.Logger
}

type GatewayConnected struct {
}

type GatewaySubscribed struct {
}

type GatewayConnectionLost struct {
	Error error
}

type downlinkReceived struct {
	message *salute.ParsedDownlink
}

type publishResult struct {
	topic string
	err   error
}

func NewGatewayActor(config *config.Config, reg *registry.Registry, catalog translator.FeatureCatalog, logger *zap.Logger) *GatewayActor {
	act := &GatewayActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		registry: reg,
		catalog:  catalog,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_GATEWAY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *GatewayActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *GatewayActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("gateway@starting started")

		state.client = salute.CreateSaluteClient(state.config, salute.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), GatewayConnectionLost{Error: err})
		})

		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), GatewayConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), GatewayConnected{})
			}
		}, 10*time.Second)

	case GatewayConnected:
		state.logger.Debug("gateway@starting connected")

		state.client.SubscribeToDownlink(func(c pahomqtt.Client, m pahomqtt.Message) {
			parsed, err := state.client.ParseDownlink(m)
			if err != nil {
				state.logger.Warn("gateway@starting bad downlink", zap.Error(err))
				return
			}
			ctx.Send(ctx.Self(), downlinkReceived{message: parsed})
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), GatewayConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), GatewaySubscribed{})
			}
		}, 5*time.Second)
	case GatewaySubscribed:
		// init completed, transition to default state
		state.logger.Debug("gateway@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case GatewayConnectionLost:
		if salute.IsAuthError(msg.Error) {
			// rejected credentials will not fix themselves on retry
			state.logger.Error("gateway@starting authentication rejected, stopping", zap.Error(msg.Error))
			ctx.Stop(ctx.Self())
			return
		}
		// stop actor and let the supervisor decide
		state.logger.Error("gateway@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("gateway@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *GatewayActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("gateway@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_GATEWAY,
			Healthy: true,
			State:   "idle",
		})
	case domain.PushDeviceStatusRequest:
		state.logger.Debug("gateway@default PushDeviceStatusRequest", zap.Strings("entity_ids", msg.EntityIDs))
		state.publishJSON(ctx, state.client.StatusTopic(), state.statusPayload(msg.EntityIDs))
	case domain.PushConfigRequest:
		state.logger.Debug("gateway@default PushConfigRequest")
		payload := translator.ConfigDocument(state.registry.Snapshot(), state.catalog, state.logger)
		state.publishJSON(ctx, state.client.ConfigTopic(), payload)
	case downlinkReceived:
		state.handleDownlink(ctx, msg.message)
	case publishResult:
		if msg.err != nil {
			// log and move on, the next push supersedes this one
			state.logger.Error("gateway@default publish failed",
				zap.String("topic", msg.topic), zap.Error(msg.err))
		} else {
			state.logger.Debug("gateway@default published", zap.String("topic", msg.topic))
		}
	case GatewayConnectionLost:
		if salute.IsAuthError(msg.Error) {
			state.logger.Error("gateway@default authentication rejected, stopping", zap.Error(msg.Error))
			ctx.Stop(ctx.Self())
			return
		}
		state.logger.Error("gateway@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("gateway@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *GatewayActor) handleDownlink(ctx actor.Context, message *salute.ParsedDownlink) {
	switch message.Kind {
	case salute.DOWNLINK_COMMANDS:
		var payload domain.StatusPayload
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			state.logger.Warn("gateway@default bad command payload", zap.Error(err))
			return
		}
		state.logger.Info("gateway@default command received", zap.Int("devices", len(payload.Devices)))
		ctx.Send(ctx.Parent(), domain.GatewayCommandMessage{Payload: payload})
	case salute.DOWNLINK_STATUS_REQUEST:
		var payload domain.StatusRequestPayload
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			state.logger.Warn("gateway@default bad status request", zap.Error(err))
			return
		}
		ctx.Send(ctx.Self(), domain.PushDeviceStatusRequest{EntityIDs: payload.Devices})
	case salute.DOWNLINK_CONFIG_REQUEST:
		ctx.Send(ctx.Self(), domain.PushConfigRequest{})
	case salute.DOWNLINK_ERRORS:
		state.logger.Info("gateway@default error report", zap.ByteString("payload", message.Payload))
	case salute.DOWNLINK_GLOBAL_CONFIG:
		var payload domain.GlobalConfigPayload
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			state.logger.Warn("gateway@default bad global config", zap.Error(err))
			return
		}
		if payload.HTTPApiEndpoint != "" {
			ctx.Send(ctx.Parent(), domain.GatewayEndpointChanged{Endpoint: payload.HTTPApiEndpoint})
		}
	}
}

// statusPayload builds the status document for the requested ids; a request
// without ids means every enabled device.
func (state *GatewayActor) statusPayload(entityIDs []string) domain.StatusPayload {
	ids := entityIDs
	if len(ids) == 0 {
		ids = state.registry.EnabledIDs()
	}
	return translator.StatusDocument(state.registry.Snapshot(), state.catalog, ids, state.logger)
}

func (state *GatewayActor) publishJSON(ctx actor.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		state.logger.Error("gateway@default payload encode failed", zap.Error(err))
		return
	}
	self := ctx.Self()
	state.client.Publish(topic, data, 0, false, func(err error) {
		ctx.Send(self, publishResult{topic: topic, err: err})
	}, 5*time.Second)
}

// Dummy actor
func NewTestGatewayActor(config *config.Config, reg *registry.Registry, catalog translator.FeatureCatalog, logger *zap.Logger) *GatewayActor {
	act := &GatewayActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		registry: reg,
		catalog:  catalog,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_GATEWAY, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *GatewayActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = salute.CreateSaluteClient(state.config, salute.OptsFromConfig(state.config), nil, nil)
	case domain.ActorHealthRequest:
		state.logger.Debug("gateway@dummy ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_GATEWAY,
			Healthy: true,
			State:   "idle",
		})
	case domain.PushDeviceStatusRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PushDeviceStatusResponse{})
		}
	case domain.PushConfigRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PushConfigResponse{})
		}
	}
}

func (state *GatewayActor) stop() {
	state.logger.Debug("gateway stopping")
	if state.client != nil {
		state.client.Disconnect(100 * time.Millisecond)
	}
}

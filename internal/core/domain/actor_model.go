package domain

const (
	ACTOR_ID_MASTER  = "master"
	ACTOR_ID_HUB     = "hub"
	ACTOR_ID_GATEWAY = "gateway"
)

// Gateway-bound queue items. The gateway actor's mailbox is the queue; the
// actor builds the payload at drain time so a slow send never observes a
// half-applied registry mutation.

// PushDeviceStatusRequest asks the gateway actor to publish a status
// document. Empty EntityIDs means all enabled devices.
type PushDeviceStatusRequest struct {
	ActorRequestMixIn
	EntityIDs []string
}

type PushDeviceStatusResponse struct {
	ActorResponseMixIn
}

// PushConfigRequest asks the gateway actor to regenerate and publish the
// full advertised device list.
type PushConfigRequest struct {
	ActorRequestMixIn
}

type PushConfigResponse struct {
	ActorResponseMixIn
}

// Hub-bound queue item: one entity whose pending canonical state must be
// turned into a hub service call.
type SendHubCommandRequest struct {
	ActorRequestMixIn
	EntityID string
}

type SendHubCommandResponse struct {
	ActorResponseMixIn
}

// HubStateChangedEvent is forwarded by the hub actor for every
// state_changed event received from the hub's event stream.
type HubStateChangedEvent struct {
	EntityID   string
	OldState   string
	NewState   string
	Attributes map[string]any
}

// GatewayCommandMessage carries a decoded down/commands document.
type GatewayCommandMessage struct {
	Payload StatusPayload
}

// GatewayEndpointChanged reports a new HTTP API endpoint announced on the
// gateway's global config topic. The master is the single writer of that
// option.
type GatewayEndpointChanged struct {
	Endpoint string
}

// Configuration surface messages (HTTP server -> master).

type GetDevicesRequest struct {
	ActorRequestMixIn
}

type GetDevicesResponse struct {
	ActorResponseMixIn
	Devices map[string]Device
}

type UpdateDevicesRequest struct {
	ActorRequestMixIn
	Devices map[string]DevicePatch
}

type UpdateDevicesResponse struct {
	ActorResponseMixIn
}

type ToggleFeatureRequest struct {
	ActorRequestMixIn
	EntityID string
	Feature  string
	Enabled  bool
}

type ToggleFeatureResponse struct {
	ActorResponseMixIn
}

type DeleteDeviceRequest struct {
	ActorRequestMixIn
	EntityID string
}

type DeleteDeviceResponse struct {
	ActorResponseMixIn
}

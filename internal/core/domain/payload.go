package domain

// JSON documents exchanged with the gateway over MQTT.

// StatusPayload is published to the up/status topic and received (without
// values for some keys) on the down/commands topic.
type StatusPayload struct {
	Devices map[string]DeviceStates `json:"devices"`
}

type DeviceStates struct {
	States []StateValue `json:"states"`
}

// ConfigPayload is the full device list advertised on the up/config topic.
type ConfigPayload struct {
	Devices []ConfigDevice `json:"devices"`
}

type ConfigDevice struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DefaultName string    `json:"default_name,omitempty"`
	Home        string    `json:"home,omitempty"`
	Room        string    `json:"room,omitempty"`
	HWVersion   string    `json:"hw_version,omitempty"`
	SWVersion   string    `json:"sw_version,omitempty"`
	ModelID     string    `json:"model_id"`
	Model       ModelInfo `json:"model"`
}

type ModelInfo struct {
	ID           string   `json:"id"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category"`
	Features     []string `json:"features"`
}

// StatusRequestPayload arrives on down/status_request. An empty device list
// means "all enabled devices".
type StatusRequestPayload struct {
	Devices []string `json:"devices"`
}

// GlobalConfigPayload arrives on the shared __config topic.
type GlobalConfigPayload struct {
	HTTPApiEndpoint string `json:"http_api_endpoint"`
}

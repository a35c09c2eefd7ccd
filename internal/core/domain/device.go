package domain

// Hub-side categories as they appear in entity ids (the part before the dot).
const (
	CATEGORY_LIGHT         = "light"
	CATEGORY_SWITCH        = "switch"
	CATEGORY_SCRIPT        = "script"
	CATEGORY_SENSOR        = "sensor"
	CATEGORY_INPUT_BOOLEAN = "input_boolean"
	CATEGORY_CLIMATE       = "climate"
)

// Gateway-side models (the category taxonomy of the voice assistant).
const (
	MODEL_HUB             = "hub"
	MODEL_LIGHT           = "light"
	MODEL_RELAY           = "relay"
	MODEL_SCENARIO_BUTTON = "scenario_button"
	MODEL_SENSOR_TEMP     = "sensor_temp"
	MODEL_HVAC_RADIATOR   = "hvac_radiator"
)

// Gateway feature keys.
const (
	FEATURE_ONLINE        = "online"
	FEATURE_ON_OFF        = "on_off"
	FEATURE_BRIGHTNESS    = "light_brightness"
	FEATURE_BUTTON_EVENT  = "button_event"
	FEATURE_TEMPERATURE   = "temperature"
	FEATURE_HVAC_TEMP_SET = "hvac_temp_set"
)

// Hub attribute keys copied into Device.Attributes by the inbound translator.
const (
	ATTR_BRIGHTNESS          = "brightness"
	ATTR_HVAC_MODES          = "hvac_modes"
	ATTR_PRESET_MODES        = "preset_modes"
	ATTR_CURRENT_TEMPERATURE = "current_temperature"
	ATTR_TEMPERATURE         = "temperature"
	ATTR_PERCENTAGE          = "percentage"
	ATTR_PERCENTAGE_STEP     = "percentage_step"
)

const STATE_UNAVAILABLE = "unavailable"

// Device is the canonical record for one hub entity known to the bridge.
type Device struct {
	EntityID   string         `json:"entity_id"`
	Category   string         `json:"category"`
	Model      string         `json:"model,omitempty"`
	Enabled    bool           `json:"enabled"`
	Name       string         `json:"name"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Features   []string       `json:"features,omitempty"`
}

// HasFeature reports whether the user has opted this device into an
// optional gateway feature.
func (d Device) HasFeature(name string) bool {
	for _, f := range d.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Copy returns an independent copy of the device. Attribute values are
// plain JSON scalars/arrays, so a shallow map/slice copy is enough to keep
// callers from mutating the stored record.
func (d Device) Copy() Device {
	c := d
	if d.Attributes != nil {
		c.Attributes = make(map[string]any, len(d.Attributes))
		for k, v := range d.Attributes {
			c.Attributes[k] = v
		}
	}
	if d.Features != nil {
		c.Features = append([]string(nil), d.Features...)
	}
	return c
}

// DevicePatch is a partial device update. Nil fields are left untouched,
// which gives the registry exclude-unset merge semantics over JSON too.
type DevicePatch struct {
	Category   *string         `json:"category,omitempty"`
	Model      *string         `json:"model,omitempty"`
	Enabled    *bool           `json:"enabled,omitempty"`
	Name       *string         `json:"name,omitempty"`
	State      *string         `json:"state,omitempty"`
	Attributes *map[string]any `json:"attributes,omitempty"`
	Features   *[]string       `json:"features,omitempty"`
}

// Apply merges the set fields of the patch into the device.
func (p DevicePatch) Apply(d Device) Device {
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Model != nil {
		d.Model = *p.Model
	}
	if p.Enabled != nil {
		d.Enabled = *p.Enabled
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.State != nil {
		d.State = *p.State
	}
	if p.Attributes != nil {
		d.Attributes = *p.Attributes
	}
	if p.Features != nil {
		d.Features = *p.Features
	}
	return d
}

// PatchFromDevice turns a full device record into a patch that sets every
// field. Used by the discovery path, which always carries a complete record.
func PatchFromDevice(d Device) DevicePatch {
	return DevicePatch{
		Category:   &d.Category,
		Model:      &d.Model,
		Enabled:    &d.Enabled,
		Name:       &d.Name,
		State:      &d.State,
		Attributes: &d.Attributes,
		Features:   &d.Features,
	}
}

// ResolveModel maps a hub category to a gateway model. An already resolved
// model always wins, so resolving twice is idempotent. Both registry
// insertion and outbound translation use this single function.
func ResolveModel(category, existing string) string {
	if existing != "" {
		return existing
	}
	switch category {
	case CATEGORY_LIGHT:
		return MODEL_LIGHT
	case CATEGORY_SWITCH, CATEGORY_SCRIPT:
		return MODEL_RELAY
	case CATEGORY_INPUT_BOOLEAN:
		return MODEL_SCENARIO_BUTTON
	case CATEGORY_SENSOR:
		return MODEL_SENSOR_TEMP
	case CATEGORY_CLIMATE:
		return MODEL_HVAC_RADIATOR
	default:
		return ""
	}
}

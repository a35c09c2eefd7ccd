package translator

import (
	"github.com/semjef/ha-salute-bridge/internal/core/domain"
)

// hubAttributeAllowlist is the fixed set of hub attribute keys the bridge
// mirrors into the canonical model. Everything else the hub attaches to an
// entity is dropped, keeping the canonical shape bounded.
var hubAttributeAllowlist = []string{
	domain.ATTR_BRIGHTNESS,
	domain.ATTR_HVAC_MODES,
	domain.ATTR_PRESET_MODES,
	domain.ATTR_CURRENT_TEMPERATURE,
	domain.ATTR_TEMPERATURE,
	domain.ATTR_PERCENTAGE,
	domain.ATTR_PERCENTAGE_STEP,
}

// FilterAttributes keeps only the allowlisted keys of a raw hub attribute
// map.
func FilterAttributes(raw map[string]any) map[string]any {
	attrs := make(map[string]any)
	for _, key := range hubAttributeAllowlist {
		if v, ok := raw[key]; ok {
			attrs[key] = v
		}
	}
	return attrs
}

// ApplyHubEvent folds a hub state-change event into the device. The
// attribute set is replaced wholesale each cycle so a key missing from the
// incoming event never survives as a stale ghost value.
func ApplyHubEvent(device domain.Device, event domain.HubStateChangedEvent) domain.Device {
	device.State = event.NewState
	device.Attributes = FilterAttributes(event.Attributes)
	return device
}

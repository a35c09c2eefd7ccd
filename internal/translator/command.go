package translator

import (
	"github.com/semjef/ha-salute-bridge/internal/core/domain"

	"go.uber.org/zap"
)

// HubServiceCall is exactly the shape the hub's service API accepts.
type HubServiceCall struct {
	Domain      string
	Service     string
	EntityID    string
	ServiceData map[string]any
}

// DecodeValue unpacks a typed gateway value. An unknown type yields an
// empty value and a logged warning; the caller still processes the rest of
// the batch.
func DecodeValue(v domain.TypedValue, logger *zap.Logger) any {
	switch v.Type {
	case domain.DATA_TYPE_BOOL:
		if v.BoolValue != nil {
			return *v.BoolValue
		}
		return false
	case domain.DATA_TYPE_INTEGER:
		if v.IntegerValue != nil {
			return *v.IntegerValue
		}
		return 0
	case domain.DATA_TYPE_ENUM:
		if v.EnumValue != nil {
			return *v.EnumValue
		}
		return ""
	default:
		logger.Warn("unknown feature value type", zap.String("type", v.Type))
		return nil
	}
}

// ApplyCommandStates folds a gateway command's feature entries into the
// device, inverting the outbound transforms. Unknown keys are skipped.
func ApplyCommandStates(device domain.Device, states []domain.StateValue, logger *zap.Logger) domain.Device {
	for _, sv := range states {
		value := DecodeValue(sv.Value, logger)
		if value == nil {
			continue
		}
		switch sv.Key {
		case domain.FEATURE_ON_OFF:
			if on, ok := value.(bool); ok {
				device.State = onOffState(on)
			}
		case domain.FEATURE_BRIGHTNESS:
			if v, ok := value.(int); ok {
				if device.Attributes == nil {
					device.Attributes = make(map[string]any)
				}
				device.Attributes[domain.ATTR_BRIGHTNESS] = HubBrightness(v)
			}
		case domain.FEATURE_BUTTON_EVENT:
			device.State = onOffState(value == "click")
		default:
			logger.Debug("command for unhandled feature",
				zap.String("entity_id", device.EntityID), zap.String("key", sv.Key))
		}
	}
	return device
}

func onOffState(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// HubCall turns the device's pending canonical state into a hub service
// call. Only commandable categories produce one; everything else (sensors
// and other read-only categories) reports false and the item is dropped.
func HubCall(device domain.Device) (HubServiceCall, bool) {
	call := HubServiceCall{
		Domain:   device.Category,
		EntityID: device.EntityID,
	}
	switch device.Category {
	case domain.CATEGORY_LIGHT:
		call.Service = turnOnOff(device.State)
		if v, ok := attrFloat(device.Attributes, domain.ATTR_BRIGHTNESS); ok && device.State == "on" {
			call.ServiceData = map[string]any{domain.ATTR_BRIGHTNESS: int(v)}
		}
	case domain.CATEGORY_SWITCH, domain.CATEGORY_INPUT_BOOLEAN:
		call.Service = turnOnOff(device.State)
	case domain.CATEGORY_SCRIPT:
		// scripts only ever fire
		call.Service = "turn_on"
	default:
		return HubServiceCall{}, false
	}
	return call, true
}

func turnOnOff(state string) string {
	if state == "on" {
		return "turn_on"
	}
	return "turn_off"
}

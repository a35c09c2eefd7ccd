package translator

import (
	"math"
	"sort"
	"strconv"

	"github.com/semjef/ha-salute-bridge/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

// FeatureCatalog is the read-only capability lookup the outbound path needs.
type FeatureCatalog interface {
	Get(category string) ([]domain.CategoryFeature, bool)
}

const (
	RootDeviceID = "root"

	manufacturer       = "HA SaluteBridge"
	rootModel          = "SBHub"
	rootDescription    = "Home Assistant Salute bridge hub"
	brightnessFloor    = 50
	brightnessCeiling  = 1000
	hubBrightnessLimit = 255
)

// GatewayBrightness converts a hub brightness [0,255] to the gateway range
// [50,1000].
func GatewayBrightness(hub float64) int {
	v := int(math.Round(hub / 2.55 * 10))
	if v < brightnessFloor {
		v = brightnessFloor
	}
	if v > brightnessCeiling {
		v = brightnessCeiling
	}
	return v
}

// HubBrightness is the inverse conversion, rounded, clamped to [0,255].
func HubBrightness(gateway int) int {
	v := int(math.Round(float64(gateway) / 10 * 2.55))
	if v < 0 {
		v = 0
	}
	if v > hubBrightnessLimit {
		v = hubBrightnessLimit
	}
	return v
}

// DeviceStates emits the gateway feature-value list for one device.
// Required features are always emitted, for every category; optional
// features only when the user has opted the device in, and only when the
// underlying value actually exists. Inapplicable features are omitted, never
// defaulted.
func DeviceStates(device domain.Device, features []domain.CategoryFeature, logger *zap.Logger) []domain.StateValue {
	var states []domain.StateValue
	for _, ft := range features {
		var (
			sv domain.StateValue
			ok bool
		)
		switch {
		case ft.Required:
			sv, ok = requiredValue(device, ft)
		case device.HasFeature(ft.Name):
			sv, ok = optionalValue(device, ft)
		default:
			continue
		}
		if !ok {
			logger.Debug("feature has no value, omitting",
				zap.String("entity_id", device.EntityID), zap.String("feature", ft.Name))
			continue
		}
		states = append(states, sv)
	}
	return states
}

func requiredValue(device domain.Device, ft domain.CategoryFeature) (domain.StateValue, bool) {
	switch ft.Name {
	case domain.FEATURE_ONLINE:
		return domain.StateValue{
			Key:   ft.Name,
			Value: domain.BoolValue(device.State != domain.STATE_UNAVAILABLE),
		}, true
	case domain.FEATURE_ON_OFF:
		return domain.StateValue{
			Key:   ft.Name,
			Value: domain.BoolValue(device.State == "on"),
		}, true
	case domain.FEATURE_TEMPERATURE, domain.FEATURE_HVAC_TEMP_SET:
		return temperatureValue(device, ft.Name)
	default:
		return domain.StateValue{}, false
	}
}

func optionalValue(device domain.Device, ft domain.CategoryFeature) (domain.StateValue, bool) {
	switch ft.Name {
	case domain.FEATURE_BRIGHTNESS:
		v, ok := attrFloat(device.Attributes, domain.ATTR_BRIGHTNESS)
		if !ok {
			// enabled but not reported: omitting is distinct from zero
			return domain.StateValue{}, false
		}
		return domain.StateValue{
			Key:   ft.Name,
			Value: domain.IntegerValue(GatewayBrightness(v)),
		}, true
	case domain.FEATURE_BUTTON_EVENT:
		event := "double_click"
		if device.State == "on" {
			event = "click"
		}
		return domain.StateValue{
			Key:   ft.Name,
			Value: domain.EnumValue(event),
		}, true
	case domain.FEATURE_TEMPERATURE, domain.FEATURE_HVAC_TEMP_SET:
		return temperatureValue(device, ft.Name)
	default:
		return domain.StateValue{}, false
	}
}

// temperatureValue reports degrees with one implied decimal digit. The set
// point comes from the temperature attribute, the measured value prefers the
// current_temperature attribute and falls back to a numeric state.
func temperatureValue(device domain.Device, feature string) (domain.StateValue, bool) {
	var (
		v  float64
		ok bool
	)
	switch feature {
	case domain.FEATURE_HVAC_TEMP_SET:
		v, ok = attrFloat(device.Attributes, domain.ATTR_TEMPERATURE)
	default:
		v, ok = attrFloat(device.Attributes, domain.ATTR_CURRENT_TEMPERATURE)
		if !ok {
			if parsed, err := strconv.ParseFloat(device.State, 64); err == nil {
				v, ok = parsed, true
			}
		}
	}
	if !ok {
		return domain.StateValue{}, false
	}
	return domain.StateValue{
		Key:   feature,
		Value: domain.IntegerValue(int(v * 10)),
	}, true
}

func attrFloat(attrs map[string]any, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// StatusDocument builds the status payload for the given entity ids, or for
// every enabled device when ids is empty. Devices with translation problems
// are skipped, never aborting the batch. An otherwise empty document reports
// the root hub online so the gateway always gets an answer.
func StatusDocument(devices map[string]domain.Device, catalog FeatureCatalog, ids []string, logger *zap.Logger) domain.StatusPayload {
	payload := domain.StatusPayload{Devices: make(map[string]domain.DeviceStates)}
	if len(ids) == 0 {
		for id := range devices {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		device, ok := devices[id]
		if !ok {
			logger.Warn("status requested for unknown device", zap.String("entity_id", id))
			continue
		}
		if !device.Enabled {
			continue
		}
		model := domain.ResolveModel(device.Category, device.Model)
		features, ok := catalog.Get(model)
		if !ok {
			logger.Warn("no capability entry for model",
				zap.String("entity_id", id), zap.String("model", model))
			continue
		}
		payload.Devices[id] = domain.DeviceStates{
			States: DeviceStates(device, features, logger),
		}
	}
	if len(payload.Devices) == 0 {
		payload.Devices[RootDeviceID] = domain.DeviceStates{
			States: []domain.StateValue{
				{Key: domain.FEATURE_ONLINE, Value: domain.BoolValue(true)},
			},
		}
	}
	return payload
}

// ConfigDocument builds the full advertised device list: the synthetic root
// hub plus one entry per enabled device. Required features are advertised
// unconditionally, optional features only when the user enabled them.
func ConfigDocument(devices map[string]domain.Device, catalog FeatureCatalog, logger *zap.Logger) domain.ConfigPayload {
	version := versioninfo.Short()
	payload := domain.ConfigPayload{
		Devices: []domain.ConfigDevice{{
			ID:        RootDeviceID,
			Name:      "HA Bridge hub",
			HWVersion: version,
			SWVersion: version,
			Model: domain.ModelInfo{
				ID:           "ID_root_hub",
				Manufacturer: manufacturer,
				Model:        rootModel,
				Description:  rootDescription,
				Category:     domain.MODEL_HUB,
				Features:     []string{domain.FEATURE_ONLINE},
			},
		}},
	}
	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		device := devices[id]
		if !device.Enabled {
			continue
		}
		model := domain.ResolveModel(device.Category, device.Model)
		catFeatures, ok := catalog.Get(model)
		if !ok {
			logger.Warn("no capability entry for model, not advertising",
				zap.String("entity_id", id), zap.String("model", model))
			continue
		}
		features := make([]string, 0, len(catFeatures))
		for _, ft := range catFeatures {
			if ft.Required || device.HasFeature(ft.Name) {
				features = append(features, ft.Name)
			}
		}
		payload.Devices = append(payload.Devices, domain.ConfigDevice{
			ID:        id,
			Name:      device.Name,
			HWVersion: version,
			SWVersion: version,
			Model: domain.ModelInfo{
				ID:           "ID_" + id,
				Manufacturer: manufacturer,
				Model:        "Model_" + model,
				Category:     model,
				Features:     features,
			},
		})
	}
	return payload
}

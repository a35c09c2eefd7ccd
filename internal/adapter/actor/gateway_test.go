package actor

import (
	"path/filepath"
	"testing"

	"github.com/semjef/ha-salute-bridge/internal/catalog"
	"github.com/semjef/ha-salute-bridge/internal/core/domain"
	"github.com/semjef/ha-salute-bridge/internal/registry"
	"github.com/semjef/ha-salute-bridge/internal/translator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func gatewayForStatus(t *testing.T) (*GatewayActor, *registry.Registry) {
	t.Helper()
	logger := zap.NewNop()
	reg := registry.NewRegistry(filepath.Join(t.TempDir(), "devices.json"), logger)
	cat := catalog.FromMap(map[string][]domain.CategoryFeature{
		domain.MODEL_LIGHT: {
			{Name: domain.FEATURE_ONLINE, DataType: domain.DATA_TYPE_BOOL, Required: true},
			{Name: domain.FEATURE_ON_OFF, DataType: domain.DATA_TYPE_BOOL, Required: true},
		},
	})
	return &GatewayActor{registry: reg, catalog: cat, logger: logger}, reg
}

func TestStatusPayloadDefaultsToEnabledDevices(t *testing.T) {
	gw, reg := gatewayForStatus(t)

	enabled := true
	disabled := false
	category := domain.CATEGORY_LIGHT
	on := "on"
	reg.Update("light.kitchen", domain.DevicePatch{Category: &category, Enabled: &enabled, State: &on})
	reg.Update("light.garage", domain.DevicePatch{Category: &category, Enabled: &disabled, State: &on})

	payload := gw.statusPayload(nil)
	assert.Contains(t, payload.Devices, "light.kitchen")
	assert.NotContains(t, payload.Devices, "light.garage")
}

func TestStatusPayloadExplicitIDsStayScoped(t *testing.T) {
	gw, reg := gatewayForStatus(t)

	enabled := true
	category := domain.CATEGORY_LIGHT
	on := "on"
	reg.Update("light.kitchen", domain.DevicePatch{Category: &category, Enabled: &enabled, State: &on})
	reg.Update("light.hall", domain.DevicePatch{Category: &category, Enabled: &enabled, State: &on})

	payload := gw.statusPayload([]string{"light.hall"})
	require.Len(t, payload.Devices, 1)
	assert.Contains(t, payload.Devices, "light.hall")
}

func TestStatusPayloadEmptyRegistryReportsRootOnline(t *testing.T) {
	gw, _ := gatewayForStatus(t)

	payload := gw.statusPayload(nil)
	require.Len(t, payload.Devices, 1)
	assert.Contains(t, payload.Devices, translator.RootDeviceID)
}

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/semjef/ha-salute-bridge/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "devices.json"), zap.NewNop())
	require.NoError(t, r.Load())
	assert.Equal(t, 0, r.Len())
}

func TestLoadMalformedFileStartsEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o644))

	r := NewRegistry(file, zap.NewNop())
	require.NoError(t, r.Load())
	assert.Equal(t, 0, r.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	require := require.New(t)

	file := filepath.Join(t.TempDir(), "data", "devices.json")
	r := NewRegistry(file, zap.NewNop())
	r.Update("light.kitchen", domain.DevicePatch{
		Category: strPtr(domain.CATEGORY_LIGHT),
		Enabled:  boolPtr(true),
		Name:     strPtr("Kitchen"),
		State:    strPtr("on"),
	})
	require.NoError(r.Save())

	r2 := NewRegistry(file, zap.NewNop())
	require.NoError(r2.Load())
	device, ok := r2.Get("light.kitchen")
	require.True(ok)
	assert.Equal(t, "Kitchen", device.Name)
	assert.Equal(t, domain.MODEL_LIGHT, device.Model)
	assert.True(t, device.Enabled)
	assert.Equal(t, "on", device.State)
}

func TestUpdateInsertsDisabledWithResolvedModel(t *testing.T) {
	require := require.New(t)

	r := NewRegistry(filepath.Join(t.TempDir(), "devices.json"), zap.NewNop())
	r.Update("switch.heater", domain.DevicePatch{
		Category: strPtr(domain.CATEGORY_SWITCH),
		State:    strPtr("off"),
	})

	device, ok := r.Get("switch.heater")
	require.True(ok)
	assert.False(t, device.Enabled, "new devices start disabled")
	assert.Equal(t, domain.MODEL_RELAY, device.Model)
	assert.Equal(t, "switch.heater", device.Name, "name defaults to the entity id")
}

func TestUpdateMergesOnlySetFields(t *testing.T) {
	require := require.New(t)

	r := NewRegistry(filepath.Join(t.TempDir(), "devices.json"), zap.NewNop())
	r.Update("light.kitchen", domain.DevicePatch{
		Category: strPtr(domain.CATEGORY_LIGHT),
		Enabled:  boolPtr(true),
		Name:     strPtr("Kitchen"),
		State:    strPtr("on"),
	})
	r.Update("light.kitchen", domain.DevicePatch{
		State: strPtr("off"),
	})

	device, ok := r.Get("light.kitchen")
	require.True(ok)
	assert.Equal(t, "off", device.State)
	assert.Equal(t, "Kitchen", device.Name)
	assert.True(t, device.Enabled)
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	require := require.New(t)

	r := NewRegistry(filepath.Join(t.TempDir(), "devices.json"), zap.NewNop())
	attrs := map[string]any{domain.ATTR_BRIGHTNESS: 128}
	r.Update("light.kitchen", domain.DevicePatch{
		Category:   strPtr(domain.CATEGORY_LIGHT),
		Attributes: &attrs,
	})

	device, ok := r.Get("light.kitchen")
	require.True(ok)
	device.Attributes[domain.ATTR_BRIGHTNESS] = 0

	again, _ := r.Get("light.kitchen")
	assert.Equal(t, 128, again.Attributes[domain.ATTR_BRIGHTNESS])
}

func TestChangeStateUnknownIsNoop(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "devices.json"), zap.NewNop())
	r.ChangeState("light.ghost", "on")
	assert.Equal(t, 0, r.Len())
}

func TestEnabledIDs(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "devices.json"), zap.NewNop())
	r.Update("light.kitchen", domain.DevicePatch{
		Category: strPtr(domain.CATEGORY_LIGHT),
		Enabled:  boolPtr(true),
	})
	r.Update("light.garage", domain.DevicePatch{
		Category: strPtr(domain.CATEGORY_LIGHT),
	})

	assert.Equal(t, []string{"light.kitchen"}, r.EnabledIDs())
}

func TestDelete(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "devices.json"), zap.NewNop())
	r.Update("light.kitchen", domain.DevicePatch{
		Category: strPtr(domain.CATEGORY_LIGHT),
	})
	r.Delete("light.kitchen")
	_, ok := r.Get("light.kitchen")
	assert.False(t, ok)
}

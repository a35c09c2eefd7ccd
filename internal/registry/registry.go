package registry

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/semjef/ha-salute-bridge/internal/core/domain"

	"go.uber.org/zap"
)

// Registry is the canonical in-memory device store, persisted as a single
// JSON document keyed by entity id. All methods are safe for concurrent use
// and every returned device is an independent copy.
type Registry struct {
	file    string
	devices map[string]domain.Device
	logger  *zap.Logger

	mu sync.RWMutex
}

func NewRegistry(file string, logger *zap.Logger) *Registry {
	r := &Registry{
		file:    file,
		devices: make(map[string]domain.Device),
		logger:  logger.With(zap.String("component", "registry")),
	}
	return r
}

// Load reads the persisted registry. A missing or empty file is an empty
// registry, malformed content is logged and replaced, neither fails startup.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.file)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("no device store yet, starting empty", zap.String("file", r.file))
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var devices map[string]domain.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		r.logger.Error("malformed device store, starting empty",
			zap.String("file", r.file), zap.Error(err))
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]domain.Device, len(devices))
	for id, d := range devices {
		d.EntityID = id
		d.Model = domain.ResolveModel(d.Category, d.Model)
		r.devices[id] = d
	}
	r.logger.Info("device store loaded", zap.Int("devices", len(devices)))
	return nil
}

// Save atomically rewrites the whole store.
func (r *Registry) Save() error {
	r.mu.RLock()
	data, err := json.MarshalIndent(r.devices, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return err
	}
	tmp := r.file + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.file), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.file)
}

// Get returns a copy of the device, if known.
func (r *Registry) Get(entityID string) (domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[entityID]
	if !ok {
		return domain.Device{}, false
	}
	return d.Copy(), true
}

// Update merges the set fields of the patch into the stored record. An
// unknown id inserts a new record with its model resolved from the patch
// category; new devices are disabled until the operator opts them in.
func (r *Registry) Update(entityID string, patch domain.DevicePatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[entityID]
	if !ok {
		r.logger.Debug("device not found, adding", zap.String("entity_id", entityID))
		d = domain.Device{EntityID: entityID}
	}
	d = patch.Apply(d)
	d.EntityID = entityID
	d.Model = domain.ResolveModel(d.Category, d.Model)
	if d.Name == "" {
		d.Name = entityID
	}
	r.devices[entityID] = d
}

// ChangeState overwrites only the state field. Unknown ids are logged and
// ignored.
func (r *Registry) ChangeState(entityID, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[entityID]
	if !ok {
		r.logger.Debug("change state for unknown device", zap.String("entity_id", entityID))
		return
	}
	d.State = state
	r.devices[entityID] = d
}

// Delete removes a device. Only the configuration surface calls this.
func (r *Registry) Delete(entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, entityID)
}

// Snapshot returns a copy of every device keyed by entity id.
func (r *Registry) Snapshot() map[string]domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Device, len(r.devices))
	for id, d := range r.devices {
		out[id] = d.Copy()
	}
	return out
}

// EnabledIDs returns the ids of every device exposed to the gateway.
func (r *Registry) EnabledIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, d := range r.devices {
		if d.Enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

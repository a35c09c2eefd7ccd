package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/semjef/ha-salute-bridge/internal/core/domain"

	"go.uber.org/zap"
)

// Catalog maps a gateway category name to its ordered feature descriptor
// list. It is fetched once from the gateway's capability endpoint, cached to
// disk and read-mostly after that. Refreshing means deleting the cache file
// and restarting.
type Catalog struct {
	features map[string][]domain.CategoryFeature
}

func (c *Catalog) Get(category string) ([]domain.CategoryFeature, bool) {
	f, ok := c.features[category]
	return f, ok
}

func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.features))
	for name := range c.features {
		out = append(out, name)
	}
	return out
}

// FromMap builds a catalog from an in-memory table. Used by tests.
func FromMap(features map[string][]domain.CategoryFeature) *Catalog {
	return &Catalog{features: features}
}

type categoriesDocument struct {
	Categories []string `json:"categories"`
}

type featuresDocument struct {
	Features []domain.CategoryFeature `json:"features"`
}

// Load returns the cached catalog if the cache file exists, otherwise
// fetches every category's feature list from the gateway HTTP API and
// writes the cache.
func Load(file, endpoint, login, password string, logger *zap.Logger) (*Catalog, error) {
	data, err := os.ReadFile(file)
	if err == nil {
		var features map[string][]domain.CategoryFeature
		if jsonErr := json.Unmarshal(data, &features); jsonErr != nil {
			logger.Error("malformed category cache, refetching",
				zap.String("file", file), zap.Error(jsonErr))
		} else {
			logger.Info("category catalog loaded from cache",
				zap.String("file", file), zap.Int("categories", len(features)))
			return &Catalog{features: features}, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	logger.Info("category cache missing, fetching from gateway")
	features, err := fetch(endpoint, login, password, logger)
	if err != nil {
		return nil, err
	}
	if err := writeCache(file, features); err != nil {
		logger.Error("could not write category cache", zap.Error(err))
	}
	return &Catalog{features: features}, nil
}

func fetch(endpoint, login, password string, logger *zap.Logger) (map[string][]domain.CategoryFeature, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	baseURL := fmt.Sprintf("%s/v1/mqtt-gate/categories", endpoint)

	var cats categoriesDocument
	if err := getJSON(client, baseURL, login, password, &cats); err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	features := make(map[string][]domain.CategoryFeature, len(cats.Categories))
	for _, id := range cats.Categories {
		logger.Debug("fetching category features", zap.String("category", id))
		var fd featuresDocument
		if err := getJSON(client, fmt.Sprintf("%s/%s/features", baseURL, id), login, password, &fd); err != nil {
			return nil, fmt.Errorf("fetch features for %s: %w", id, err)
		}
		features[id] = fd.Features
	}
	logger.Info("category catalog fetched", zap.Int("categories", len(features)))
	return features, nil
}

func getJSON(client *http.Client, url, login, password string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(login, password)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func writeCache(file string, features map[string][]domain.CategoryFeature) error {
	data, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	return os.WriteFile(file, data, 0o644)
}

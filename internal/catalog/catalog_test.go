package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/semjef/ha-salute-bridge/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadFromCacheFile(t *testing.T) {
	require := require.New(t)

	file := filepath.Join(t.TempDir(), "categories.json")
	cached := map[string][]domain.CategoryFeature{
		domain.MODEL_LIGHT: {
			{Name: domain.FEATURE_ONLINE, DataType: domain.DATA_TYPE_BOOL, Required: true},
		},
	}
	data, err := json.Marshal(cached)
	require.NoError(err)
	require.NoError(os.WriteFile(file, data, 0o644))

	catalog, err := Load(file, "http://unreachable.invalid", "login", "password", zap.NewNop())
	require.NoError(err)

	features, ok := catalog.Get(domain.MODEL_LIGHT)
	require.True(ok)
	require.Len(features, 1)
	assert.Equal(t, domain.FEATURE_ONLINE, features[0].Name)
	assert.True(t, features[0].Required)
}

func TestLoadFetchesAndWritesCache(t *testing.T) {
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, password, ok := r.BasicAuth()
		require.True(ok)
		require.Equal("login", login)
		require.Equal("password", password)
		switch r.URL.Path {
		case "/v1/mqtt-gate/categories":
			fmt.Fprint(w, `{"categories":["light","relay"]}`)
		case "/v1/mqtt-gate/categories/light/features", "/v1/mqtt-gate/categories/relay/features":
			fmt.Fprint(w, `{"features":[{"name":"online","data_type":"BOOL","required":true},{"name":"on_off","data_type":"BOOL","required":true}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "data", "categories.json")
	catalog, err := Load(file, server.URL, "login", "password", zap.NewNop())
	require.NoError(err)

	assert.ElementsMatch(t, []string{"light", "relay"}, catalog.Categories())
	features, ok := catalog.Get("relay")
	require.True(ok)
	require.Len(features, 2)

	// second load must come from the cache, the server is gone by then
	server.Close()
	again, err := Load(file, server.URL, "login", "password", zap.NewNop())
	require.NoError(err)
	assert.ElementsMatch(t, []string{"light", "relay"}, again.Categories())
}

func TestLoadFetchErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "categories.json")
	_, err := Load(file, server.URL, "login", "bad-password", zap.NewNop())
	assert.Error(t, err)
}

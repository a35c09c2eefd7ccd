package util

import (
	"github.com/semjef/ha-salute-bridge/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		HomeAssistant: config.HomeAssistantConfig{
			ApiUrl: "http://localhost:8123",
			Token:  "test-token",
		},
		Salute: config.SaluteConfig{
			Broker:   "localhost",
			Port:     1883,
			Login:    "test_login",
			Password: "test_password",
		},
		Storage: config.StorageConfig{
			DevicesFile:    "testdata/devices.json",
			CategoriesFile: "testdata/categories.json",
		},
		Bridge: config.BridgeConfig{
			CommandCooldownMillis:   200,
			HeartbeatIntervalMillis: 60000,
		},
		Port: 8080,
	}
}

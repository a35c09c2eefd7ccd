package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel      zapcore.Level
	HomeAssistant HomeAssistantConfig `mapstructure:"home_assistant"`
	Salute        SaluteConfig        `mapstructure:"salute"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Bridge        BridgeConfig        `mapstructure:"bridge"`
	Port          uint                `mapstructure:"port"`
	HttpLog       bool                `mapstructure:"http_log"`
}

type HomeAssistantConfig struct {
	ApiUrl string `mapstructure:"api_url"`
	Token  string `mapstructure:"token"`
}

type SaluteConfig struct {
	Broker          string `mapstructure:"broker"`
	Port            int    `mapstructure:"port"`
	Login           string `mapstructure:"login"`
	Password        string `mapstructure:"password"`
	HTTPApiEndpoint string `mapstructure:"http_api_endpoint"`
	TLSInsecure     bool   `mapstructure:"tls_insecure"`
}

type StorageConfig struct {
	DevicesFile    string `mapstructure:"devices_file"`
	CategoriesFile string `mapstructure:"categories_file"`
}

type BridgeConfig struct {
	CommandCooldownMillis   uint32 `mapstructure:"command_cooldown_millis"`
	HeartbeatIntervalMillis uint32 `mapstructure:"heartbeat_interval_millis"`
}

// CheckMQTTLogin validates the gateway login, which doubles as an MQTT
// topic segment.
func CheckMQTTLogin(login string) (string, error) {
	trimmed := strings.TrimSpace(login)
	loginRegexp := regexp.MustCompile("^[a-zA-Z0-9_-]+$")
	matches := loginRegexp.FindAllStringSubmatch(trimmed, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid login. can only contain letters, numbers, underscores and dashes")
	}
	return trimmed, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/semjef/ha-salute-bridge/internal/adapter/actor"
	"github.com/semjef/ha-salute-bridge/internal/catalog"
	"github.com/semjef/ha-salute-bridge/internal/config"
	"github.com/semjef/ha-salute-bridge/internal/core/actor"
	"github.com/semjef/ha-salute-bridge/internal/registry"
	"github.com/semjef/ha-salute-bridge/internal/server"
	"github.com/semjef/ha-salute-bridge/internal/util/actorutil"
	"github.com/semjef/ha-salute-bridge/pkg/hass"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// feature catalog, cached on disk after the first fetch
	featureCatalog, err := catalog.Load(cfg.Storage.CategoriesFile, cfg.Salute.HTTPApiEndpoint,
		cfg.Salute.Login, cfg.Salute.Password, logger)
	if err != nil {
		logger.Error("could not load feature catalog", zap.Error(err))
		return
	}

	// device registry
	reg := registry.NewRegistry(cfg.Storage.DevicesFile, logger)
	if err := reg.Load(); err != nil {
		logger.Error("could not load device registry", zap.Error(err))
		return
	}

	endpointStore := config.NewEndpointStore(cfg.Salute.HTTPApiEndpoint)
	go func() {
		for endpoint := range endpointStore.Subscribe() {
			logger.Info("gateway api endpoint updated", zap.String("endpoint", endpoint))
		}
	}()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewBridgeMasterActor(*cfg, reg, endpointStore,
			hubActorProvider(cfg, reg, logger), gatewayActorProvider(cfg, reg, featureCatalog, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()

	if err := reg.Save(); err != nil {
		logger.Error("could not save device registry", zap.Error(err))
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => SALUTE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SALUTE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("salute")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if cfg.HomeAssistant.ApiUrl == "" {
		return nil, errors.New("config param home_assistant.api_url is required")
	}
	if cfg.HomeAssistant.Token == "" {
		return nil, errors.New("config param home_assistant.token is required")
	}

	// check gateway login, it doubles as a topic segment
	login, err := config.CheckMQTTLogin(cfg.Salute.Login)
	if err != nil {
		return nil, err
	}
	cfg.Salute.Login = login

	// check bounds
	if cfg.Bridge.CommandCooldownMillis < 100 {
		return nil, errors.New("config param bridge.command_cooldown_millis should be >= 100ms")
	}
	if cfg.Bridge.HeartbeatIntervalMillis < 1000 {
		return nil, errors.New("config param bridge.heartbeat_interval_millis should be >= 1000ms")
	}

	return &cfg, nil
}

func hubActorProvider(cfg *config.Config, reg *registry.Registry, logger *zap.Logger) actor.HubActorProvider {
	return func() *adactor.HubActor {
		client := hass.CreateWebsocketHubClient(cfg.HomeAssistant.ApiUrl, cfg.HomeAssistant.Token,
			time.Duration(cfg.Bridge.CommandCooldownMillis)*time.Millisecond, logger)
		return adactor.NewHubActor(client, reg, logger)
	}
}

func gatewayActorProvider(cfg *config.Config, reg *registry.Registry, featureCatalog *catalog.Catalog, logger *zap.Logger) actor.GatewayActorProvider {
	return func() *adactor.GatewayActor {
		return adactor.NewGatewayActor(cfg, reg, featureCatalog, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("salute.broker", "mqtt.iot.sberdevices.ru")
	viper.SetDefault("salute.port", 8883)
	viper.SetDefault("salute.http_api_endpoint", "https://gateway.iot.sberdevices.ru")
	viper.SetDefault("salute.tls_insecure", false)
	viper.SetDefault("storage.devices_file", "data/devices.json")
	viper.SetDefault("storage.categories_file", "data/categories.json")
	viper.SetDefault("bridge.command_cooldown_millis", 2000)
	viper.SetDefault("bridge.heartbeat_interval_millis", 30000)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.HomeAssistant.Token = "*redacted*"
	cfg.Salute.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}

// registryd binds one vehicle to one device.
//
// The authorised VIN is compiled in:
//
//	go build -ldflags "-X main.authorizedVIN=EE90-9073699" ./cmd/registryd
//
// The binding is stored as a single JSON file at registration.store_path.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/technodrive/vehictl/internal/api"
	"github.com/technodrive/vehictl/internal/infrastructure/config"
	"github.com/technodrive/vehictl/internal/infrastructure/logging"
	"github.com/technodrive/vehictl/internal/infrastructure/mqtt"
	"github.com/technodrive/vehictl/internal/registration"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// authorizedVIN is the only VIN accepted by /register.
var authorizedVIN = "EE90-9073699"

const (
	serviceName       = "registryd"
	defaultConfigPath = "configs/vehictl.yaml"
)

// shutdownSignals end run. SIGHUP arrives when the ssh session that started
// registryd drops.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default(serviceName)
	log.Info("starting registryd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if authorizedVIN == "" {
		return fmt.Errorf("no authorised VIN compiled in")
	}

	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, serviceName, version)
	log.Info("configuration loaded", "path", configPath)

	store := registration.NewFileStore(cfg.Registration.StorePath)
	service := registration.NewService(store, authorizedVIN)
	service.SetLogger(log.With("component", "registration"))

	// MQTT is optional telemetry: a broker that is down never stops registryd.
	var (
		mqttClient *mqtt.Client
		mqttHealth api.HealthChecker
	)
	if cfg.MQTT.Enabled {
		broker := fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)
		mqttClient = mqtt.NewClient(cfg.MQTT, serviceName)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()

		publisher := mqttRegistrationPublisher{client: mqttClient}
		service.SetPublisher(publisher)

		// Announce the state found on disk on the first connection and again
		// after every reconnect, so retained subscribers start current.
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected", "broker", broker)
			sum, statusErr := service.Status()
			if statusErr != nil {
				log.Warn("failed to read registration state", "error", statusErr)
				return
			}
			if pubErr := publisher.PublishRegistration(sum); pubErr != nil {
				log.Warn("failed to publish registration state", "error", pubErr)
			}
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT connection lost", "error", err)
		})
		mqttHealth = mqttClient
	}

	log.Info("registration store ready", "path", store.Path())

	server, err := api.New(api.Deps{
		Config:       cfg.Registration.API,
		Logger:       log,
		Version:      version,
		Registration: service,
		MQTT:         mqttHealth,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if mqttClient != nil {
		connectMQTT(log, mqttClient, cfg.MQTT)
	}

	switch err := healthCheck(ctx, log, server, mqttHealth); {
	case err == nil:
		log.Info("health checks passed")
	case ctx.Err() == nil:
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("registryd ready", "address", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// connectMQTT waits up to mqtt.connect_timeout for the broker. A broker that
// does not answer is retried in the background.
func connectMQTT(log *logging.Logger, client *mqtt.Client, cfg config.MQTTConfig) {
	if err := client.Connect(); err != nil {
		log.Warn("MQTT broker unavailable, retrying in background",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"error", err,
		)
	}
}

// healthCheck verifies the started components. The API server must be up;
// a broker that is not connected yet is only reported.
func healthCheck(ctx context.Context, log *logging.Logger, server *api.Server, mqttHealth api.HealthChecker) error {
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttHealth != nil {
		if err := mqttHealth.HealthCheck(ctx); err != nil {
			log.Warn("MQTT not connected, state publishing paused", "error", err)
		}
	}

	return nil
}

// getConfigPath returns the config file path from VEHICTL_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("VEHICTL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// registrationStateMessage is the retained payload on vehictl/state/registration.
type registrationStateMessage struct {
	Registered bool      `json:"registered"`
	DeviceID   string    `json:"device_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// mqttRegistrationPublisher announces registration changes on the MQTT bus.
type mqttRegistrationPublisher struct {
	client *mqtt.Client
}

func (p mqttRegistrationPublisher) PublishRegistration(s registration.Summary) error {
	return p.client.PublishState(mqtt.Topics{}.RegistrationState(), stateMessage(s, time.Now().UTC()))
}

// stateMessage builds the payload from an already-masked summary.
func stateMessage(s registration.Summary, now time.Time) registrationStateMessage {
	return registrationStateMessage{
		Registered: s.Registered,
		DeviceID:   s.DeviceID,
		Timestamp:  now,
	}
}

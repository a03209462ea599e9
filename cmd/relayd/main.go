// relayd drives the vehicle relay board over HTTP.
//
// GET /control?starter=1&ignition=1&ac=1 switches the starter, ignition and
// AC (compressor and fan together) relays. The relays are active-low: ON
// pulls the GPIO line LOW.
//
// The GPIO lines are released on every exit path once they are acquired.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/technodrive/vehictl/internal/api"
	"github.com/technodrive/vehictl/internal/control"
	"github.com/technodrive/vehictl/internal/infrastructure/config"
	"github.com/technodrive/vehictl/internal/infrastructure/logging"
	"github.com/technodrive/vehictl/internal/infrastructure/mqtt"
	"github.com/technodrive/vehictl/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	serviceName       = "relayd"
	defaultConfigPath = "configs/vehictl.yaml"
)

// shutdownSignals end run; every one of them releases the GPIO lines.
// SIGHUP arrives when the ssh session that started relayd drops.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until ctx is cancelled.
// Resources are released in reverse order of acquisition.
func run(ctx context.Context) error {
	log := logging.Default(serviceName)
	log.Info("starting relayd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	board, err := relay.NewBoard(openerFor(cfg.Relay.GPIO, log), pinMap(cfg.Relay.GPIO.Pins))
	if err != nil {
		return fmt.Errorf("configuring relay board: %w", err)
	}
	board.SetLogger(log.With("component", "relay"))

	if err := board.Initialize(); err != nil {
		return fmt.Errorf("initialising GPIO: %w", err)
	}

	defer func() {
		if shutdownErr := board.Shutdown(); shutdownErr != nil {
			log.Error("error releasing GPIO", "error", shutdownErr)
			return
		}
		log.Info("GPIO cleaned up")
	}()

	// MQTT is optional telemetry: a broker that is down never stops relayd.
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

		publisher := mqttStatePublisher{client: mqttClient}
		board.SetPublisher(publisher)

		// Runs on the first connection and after every reconnect so
		// retained subscribers start current.
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected", "broker", broker)
			if pubErr := publishBoard(board, publisher); pubErr != nil {
				log.Warn("failed to publish relay states", "error", pubErr)
			}
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT connection lost", "error", err)
		})
		mqttHealth = mqttClient
	}

	controller := control.NewController(board)
	controller.SetLogger(log.With("component", "control"))

	server, err := api.New(api.Deps{
		Config:     cfg.Relay.API,
		Logger:     log,
		Version:    version,
		Controller: controller,
		Pins:       board.Pins(),
		MQTT:       mqttHealth,
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

	// The relays are already served while the broker is awaited.
	if mqttClient != nil {
		connectMQTT(log, mqttClient, cfg.MQTT)
	}

	switch err := healthCheck(ctx, log, server, mqttHealth); {
	case err == nil:
		log.Info("health checks passed")
	case ctx.Err() == nil:
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("relayd ready", "address", server.Addr())

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

func pinMap(p config.PinConfig) relay.PinMap {
	return relay.PinMap{
		relay.Ignition:   p.Ignition,
		relay.Starter:    p.Starter,
		relay.Compressor: p.Compressor,
		relay.Fan:        p.Fan,
	}
}

// openerFor returns the GPIO backend selected by cfg.
func openerFor(cfg config.GPIOConfig, log *logging.Logger) relay.LineOpener {
	if cfg.Simulate {
		log.Warn("GPIO simulation enabled: relays are not driven")
		return relay.NewMemoryOpener()
	}
	return relay.NewCdevOpener(cfg.Chip, cfg.Consumer)
}

// publishBoard announces the current state of every channel.
func publishBoard(board *relay.Board, publisher relay.StatePublisher) error {
	var errs []error
	for _, ch := range relay.AllChannels() {
		on, err := board.State(ch)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := publisher.PublishChannelState(ch, on); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// relayStateMessage is the retained payload on vehictl/state/relay/<channel>.
type relayStateMessage struct {
	Channel   string    `json:"channel"`
	On        bool      `json:"on"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// mqttStatePublisher announces relay writes on the MQTT bus.
type mqttStatePublisher struct {
	client *mqtt.Client
}

func (p mqttStatePublisher) PublishChannelState(ch relay.Channel, on bool) error {
	return p.client.PublishState(mqtt.Topics{}.RelayState(string(ch)), relayStateMessage{
		Channel:   string(ch),
		On:        on,
		State:     relay.StateText(on),
		Timestamp: time.Now().UTC(),
	})
}

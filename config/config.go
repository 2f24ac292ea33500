package config

import (
	"fmt"
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/types"
	"github.com/askarbek/ride-driver-agent/pkg/configparser"
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Driver     DriverConfig
		Backend    BackendConfig
		Notify     NotifyConfig
		RabbitMQ   RabbitMQConfig
		Location   LocationConfig
		ControlAPI ControlAPIConfig

		LogLevel string `env:"LOG_LEVEL" default:"DEBUG"`
	}

	DriverConfig struct {
		// ID may be left empty; it is then resolved from the backend by phone
		// or taken from the bearer token claims at startup.
		ID        string `env:"DRIVER_ID"`
		Phone     string `env:"DRIVER_PHONE"`
		PushToken string `env:"DRIVER_PUSH_TOKEN"`
	}

	BackendConfig struct {
		BaseURL     string        `env:"BACKEND_BASE_URL" default:"http://localhost:3000"`
		BearerToken string        `env:"BACKEND_BEARER_TOKEN"`
		CallTimeout time.Duration `env:"BACKEND_CALL_TIMEOUT" default:"10s"`
	}

	NotifyConfig struct {
		Transport types.PushTransport `env:"NOTIFY_TRANSPORT" default:"amqp"`
		WSBaseURL string              `env:"NOTIFY_WS_BASE_URL" default:"ws://localhost:3001"`
		Exchange  string              `env:"NOTIFY_EXCHANGE" default:"booking.events"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`

		LocationExchange string `env:"RABBITMQ_LOCATION_EXCHANGE" default:"driver.location"`
	}

	LocationConfig struct {
		SampleInterval time.Duration `env:"LOCATION_SAMPLE_INTERVAL" default:"5s"`

		// Starting point of the simulated positioner.
		OriginLatitude  float64 `env:"LOCATION_ORIGIN_LATITUDE" default:"51.0909"`
		OriginLongitude float64 `env:"LOCATION_ORIGIN_LONGITUDE" default:"71.4187"`

		// Publish fan-out over RabbitMQ is optional.
		PublishEnabled bool `env:"LOCATION_PUBLISH_ENABLED" default:"true"`
	}

	ControlAPIConfig struct {
		Host string `env:"CONTROL_API_HOST" default:"127.0.0.1"`
		Port string `env:"CONTROL_API_PORT" default:"4400"`
	}
)

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	return cfg, nil
}

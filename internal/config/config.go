package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET"`

	DB   DB   `envconfig:"DB"`
	AMQP AMQP `envconfig:"AMQP"`

	CartTTL   time.Duration `envconfig:"CART_TTL" default:"168h"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"72h"`
	LogLevel  string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string        `envconfig:"LOG_FORMAT" default:"json"`
}

// DB tunes the storage client. Nothing here is exposed to API callers.
type DB struct {
	ConnectTimeout   time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`
	OperationTimeout time.Duration `envconfig:"OPERATION_TIMEOUT" default:"10s"`
	ConnectRetries   uint64        `envconfig:"CONNECT_RETRIES" default:"5"`
	MaxOpenConns     int           `envconfig:"MAX_OPEN_CONNS" default:"10"`
}

// AMQP is optional; an empty URL disables the broker publisher.
type AMQP struct {
	URL      string `envconfig:"URL"`
	Exchange string `envconfig:"EXCHANGE" default:"storefront.orders"`
}

// Load reads a .env file when present and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	return cfg, nil
}

// RequireServe checks the settings only the HTTP server needs.
func (c Config) RequireServe() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	return nil
}

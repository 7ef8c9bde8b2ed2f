package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Debug     bool   `env:"DEBUG" envDefault:"false"`
	Port      string `env:"PORT" envDefault:"1234"`
	Domain    string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	JWTSecret string `env:"JWT_SECRET,required"`

	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`

	// LivenessWindow is how long a connection may stay silent before it
	// is treated as dead and removed from its room.
	LivenessWindow time.Duration `env:"LIVENESS_WINDOW" envDefault:"60s"`
	PingInterval   time.Duration `env:"PING_INTERVAL" envDefault:"30s"`

	Postgres PostgresConfig
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"pagerelay"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if c.PingInterval >= c.LivenessWindow {
		return nil, fmt.Errorf("ping interval %s must be shorter than liveness window %s", c.PingInterval, c.LivenessWindow)
	}

	return &c, nil
}

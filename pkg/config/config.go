package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string

	HTTP struct {
		Port int
	}
	Auth struct {
		Secret        string
		TokenDuration time.Duration
		Guard         bool
		// sign-in throttling: LoginBurst attempts, one more every LoginRate
		LoginRate     time.Duration
		LoginBurst    int
	}
	Realtime struct {
		Transport      string // websocket, amqp or redis
		URL            string
		BackoffBase    time.Duration
		BackoffMax     time.Duration
		BackoffFactor  float64
		HandshakeToken string
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	DB struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
	}
	Catalog struct {
		Source  string // seed or postgres
		Refresh time.Duration
	}
	// SelectionPolicy is preserve or prune; see the drivers view.
	SelectionPolicy string
	Delays struct {
		Navigation time.Duration
		Login      time.Duration
		Export     time.Duration
		Upload     time.Duration
		Focus      time.Duration
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("HTTP_PORT", 3010)

	v.SetDefault("JWT_SECRET_KEY", "fleet-dashboard-dev")
	v.SetDefault("JWT_TOKEN_DURATION", time.Hour)
	v.SetDefault("AUTH_GUARD", true)
	v.SetDefault("LOGIN_RATE", 12*time.Second)
	v.SetDefault("LOGIN_BURST", 5)

	v.SetDefault("REALTIME_TRANSPORT", "websocket")
	v.SetDefault("REALTIME_URL", "ws://localhost:8080/ws/dashboard")
	v.SetDefault("REALTIME_BACKOFF_BASE", time.Second)
	v.SetDefault("REALTIME_BACKOFF_MAX", 30*time.Second)
	v.SetDefault("REALTIME_BACKOFF_FACTOR", 2.0)
	v.SetDefault("REALTIME_TOKEN", "")

	v.SetDefault("RABBITMQ_HOST", "localhost")
	v.SetDefault("RABBITMQ_PORT", 5672)
	v.SetDefault("RABBITMQ_USER", "guest")
	v.SetDefault("RABBITMQ_PASS", "guest")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASS", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "fleet_user")
	v.SetDefault("DB_PASS", "fleet_pass")
	v.SetDefault("DB_NAME", "fleet_db")

	v.SetDefault("CATALOG_SOURCE", "seed")
	v.SetDefault("CATALOG_REFRESH", 30*time.Second)
	v.SetDefault("SELECTION_POLICY", "preserve")

	v.SetDefault("NAVIGATION_DELAY", 800*time.Millisecond)
	v.SetDefault("LOGIN_DELAY", 1500*time.Millisecond)
	v.SetDefault("EXPORT_DELAY", 1500*time.Millisecond)
	v.SetDefault("UPLOAD_DELAY", 2000*time.Millisecond)
	v.SetDefault("FOCUS_DELAY", 500*time.Millisecond)
}

// LoadConfig reads filename (dotenv format) when it exists and overlays the
// process environment. A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("could not read env file: %w", err)
			}
		}
	}

	cfg := &Config{}
	cfg.LogLevel = v.GetString("LOG_LEVEL")
	cfg.HTTP.Port = v.GetInt("HTTP_PORT")

	cfg.Auth.Secret = v.GetString("JWT_SECRET_KEY")
	cfg.Auth.TokenDuration = v.GetDuration("JWT_TOKEN_DURATION")
	cfg.Auth.Guard = v.GetBool("AUTH_GUARD")
	cfg.Auth.LoginRate = v.GetDuration("LOGIN_RATE")
	cfg.Auth.LoginBurst = v.GetInt("LOGIN_BURST")

	cfg.Realtime.Transport = v.GetString("REALTIME_TRANSPORT")
	cfg.Realtime.URL = v.GetString("REALTIME_URL")
	cfg.Realtime.BackoffBase = v.GetDuration("REALTIME_BACKOFF_BASE")
	cfg.Realtime.BackoffMax = v.GetDuration("REALTIME_BACKOFF_MAX")
	cfg.Realtime.BackoffFactor = v.GetFloat64("REALTIME_BACKOFF_FACTOR")
	cfg.Realtime.HandshakeToken = v.GetString("REALTIME_TOKEN")

	cfg.RabbitMQ.Host = v.GetString("RABBITMQ_HOST")
	cfg.RabbitMQ.Port = v.GetInt("RABBITMQ_PORT")
	cfg.RabbitMQ.User = v.GetString("RABBITMQ_USER")
	cfg.RabbitMQ.Password = v.GetString("RABBITMQ_PASS")

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASS")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetInt("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASS")
	cfg.DB.Database = v.GetString("DB_NAME")

	cfg.Catalog.Source = v.GetString("CATALOG_SOURCE")
	cfg.Catalog.Refresh = v.GetDuration("CATALOG_REFRESH")
	cfg.SelectionPolicy = v.GetString("SELECTION_POLICY")

	cfg.Delays.Navigation = v.GetDuration("NAVIGATION_DELAY")
	cfg.Delays.Login = v.GetDuration("LOGIN_DELAY")
	cfg.Delays.Export = v.GetDuration("EXPORT_DELAY")
	cfg.Delays.Upload = v.GetDuration("UPLOAD_DELAY")
	cfg.Delays.Focus = v.GetDuration("FOCUS_DELAY")

	return cfg, nil
}

// RabbitMQURL builds the AMQP dsn.
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// PostgresDSN builds the pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Database,
	)
}

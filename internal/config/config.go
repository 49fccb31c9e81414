package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration of the service.
type Config struct {
	AppPort       string
	UserStore     string
	TokenStore    string
	DBDialect     string
	DatabaseDSN   string
	MongoURI      string
	MongoDB       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	TokenTTL      time.Duration
	BcryptCost    int
	SweepInterval time.Duration
	RabbitMQURL   string
	LogLevel      string
	LogPretty     bool
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("USER_STORE", "gorm")
	v.SetDefault("TOKEN_STORE", "gorm")
	v.SetDefault("DB_DIALECT", "sqlite")
	v.SetDefault("DATABASE_DSN", "gigauth.db")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "gigauth")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SWEEP_INTERVAL", "10m")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

// Load reads configuration from environment variables (and any config source already
// attached to v) on top of the defaults.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:       v.GetString("APP_PORT"),
		UserStore:     v.GetString("USER_STORE"),
		TokenStore:    v.GetString("TOKEN_STORE"),
		DBDialect:     v.GetString("DB_DIALECT"),
		DatabaseDSN:   v.GetString("DATABASE_DSN"),
		MongoURI:      v.GetString("MONGO_URI"),
		MongoDB:       v.GetString("MONGO_DB"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		TokenTTL:      v.GetDuration("TOKEN_TTL"),
		BcryptCost:    v.GetInt("BCRYPT_COST"),
		SweepInterval: v.GetDuration("SWEEP_INTERVAL"),
		RabbitMQURL:   v.GetString("RABBITMQ_URL"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogPretty:     v.GetBool("LOG_PRETTY"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	switch c.UserStore {
	case "gorm", "mongo", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported USER_STORE %q", c.UserStore))
	}
	switch c.TokenStore {
	case "gorm", "mongo", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported TOKEN_STORE %q", c.TokenStore))
	}
	switch c.DBDialect {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DIALECT %q", c.DBDialect))
	}
	return errors.Join(errs...)
}

// UsesGORM reports whether either store needs the SQL database.
func (c *Config) UsesGORM() bool {
	return c.UserStore == "gorm" || c.TokenStore == "gorm"
}

// UsesMongo reports whether either store needs MongoDB.
func (c *Config) UsesMongo() bool {
	return c.UserStore == "mongo" || c.TokenStore == "mongo"
}

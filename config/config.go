package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "NIGHTFALL"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string        `mapstructure:"http_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	HealthAddress  string        `mapstructure:"health_address"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	PublicURL      string        `mapstructure:"public_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	// Driver is one of memory, gorm or postgres.
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DSN returns a libpq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}

// GameConfig holds every tunable of the session engine.
type GameConfig struct {
	MinParticipants int `mapstructure:"min_participants"`
	MaxParticipants int `mapstructure:"max_participants"`
	// ReadyGated waits for ready signals before the first night; when false
	// the night starts as soon as the minimum is reached.
	ReadyGated bool `mapstructure:"ready_gated"`
	// TickInterval is the wall-clock length of one time unit.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// Retention is how long a completed session stays queryable.
	Retention time.Duration  `mapstructure:"retention"`
	Durations PhaseDurations `mapstructure:"durations"`
}

// PhaseDurations are counted in time units.
type PhaseDurations struct {
	ReadyTimeout int `mapstructure:"ready_timeout"`
	ReadyGrace   int `mapstructure:"ready_grace"`
	Night        int `mapstructure:"night"`
	Resolution   int `mapstructure:"resolution"`
	Task         int `mapstructure:"task"`
	Voting       int `mapstructure:"voting"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DefaultGameConfig returns the engine defaults.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		MinParticipants: 4,
		MaxParticipants: 10,
		ReadyGated:      true,
		TickInterval:    time.Second,
		Retention:       10 * time.Minute,
		Durations: PhaseDurations{
			ReadyTimeout: 60,
			ReadyGrace:   5,
			Night:        45,
			Resolution:   10,
			Task:         30,
			Voting:       60,
		},
	}
}

// Validate checks values that would otherwise break the engine at runtime.
func (g GameConfig) Validate() error {
	var errs []error
	if g.MinParticipants < 3 {
		errs = append(errs, fmt.Errorf("game.min_participants must be at least 3, got %d", g.MinParticipants))
	}
	if g.MaxParticipants < g.MinParticipants {
		errs = append(errs, fmt.Errorf("game.max_participants (%d) is below min_participants (%d)", g.MaxParticipants, g.MinParticipants))
	}
	if g.TickInterval <= 0 {
		errs = append(errs, errors.New("game.tick_interval must be positive"))
	}
	d := g.Durations
	for name, v := range map[string]int{
		"ready_timeout": d.ReadyTimeout,
		"ready_grace":   d.ReadyGrace,
		"night":         d.Night,
		"resolution":    d.Resolution,
		"task":          d.Task,
		"voting":        d.Voting,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("game.durations.%s must be positive, got %d", name, v))
		}
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	g := DefaultGameConfig()

	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.health_address", ":8082")
	v.SetDefault("server.metrics_address", ":9090")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.request_timeout", 5*time.Second)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "nightfall")

	v.SetDefault("game.min_participants", g.MinParticipants)
	v.SetDefault("game.max_participants", g.MaxParticipants)
	v.SetDefault("game.ready_gated", g.ReadyGated)
	v.SetDefault("game.tick_interval", g.TickInterval)
	v.SetDefault("game.retention", g.Retention)
	v.SetDefault("game.durations.ready_timeout", g.Durations.ReadyTimeout)
	v.SetDefault("game.durations.ready_grace", g.Durations.ReadyGrace)
	v.SetDefault("game.durations.night", g.Durations.Night)
	v.SetDefault("game.durations.resolution", g.Durations.Resolution)
	v.SetDefault("game.durations.task", g.Durations.Task)
	v.SetDefault("game.durations.voting", g.Durations.Voting)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path if present, then .env, then
// NIGHTFALL_* environment variables, which win over the file.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Game.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

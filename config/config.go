package config

import (
	"errors"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`

	v *viper.Viper
}

type ServerConfig struct {
	TCPAddress     string        `mapstructure:"tcp_address"`
	WSAddress      string        `mapstructure:"ws_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	GRPCAddress    string        `mapstructure:"grpc_address"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	OutboxSize     int           `mapstructure:"outbox_size"`
}

// GameConfig 地图与宝藏房间参数
type GameConfig struct {
	Rows            int           `mapstructure:"rows"`
	Cols            int           `mapstructure:"cols"`
	Treasures       int           `mapstructure:"treasures"`
	RoomRows        int           `mapstructure:"room_rows"`
	RoomCols        int           `mapstructure:"room_cols"`
	RoomDuration    time.Duration `mapstructure:"room_duration"`
	RoomTick        time.Duration `mapstructure:"room_tick"`
	Seed            int64         `mapstructure:"seed"`
	TimerResolution time.Duration `mapstructure:"timer_resolution"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Bolt     BoltConfig     `mapstructure:"bolt"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.tcp_address", ":8080")
	v.SetDefault("server.ws_address", "")
	v.SetDefault("server.rpc_address", "")
	v.SetDefault("server.grpc_address", "")
	v.SetDefault("server.metrics_address", "")
	v.SetDefault("server.idle_timeout", "0s")
	v.SetDefault("server.outbox_size", 64)

	v.SetDefault("game.rows", 8)
	v.SetDefault("game.cols", 8)
	v.SetDefault("game.treasures", 8)
	v.SetDefault("game.room_rows", 4)
	v.SetDefault("game.room_cols", 4)
	v.SetDefault("game.room_duration", "10s")
	v.SetDefault("game.room_tick", "1s")
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.timer_resolution", "50ms")

	v.SetDefault("database.driver", "none")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "tesouro")
	v.SetDefault("database.bolt.path", "tesouro.db")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "tesouro.eventos")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path if present. TESOURO_* environment
// variables override file values, e.g. TESOURO_GAME_ROWS.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("tesouro")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	config.v = v
	return config, nil
}

// Watch reloads the file on change and passes the fresh config to fn.
// Does nothing when no config file was found.
func (c *Config) Watch(fn func(*Config)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fresh, err := decode(c.v)
		if err != nil {
			return
		}
		fn(fresh)
	})
	c.v.WatchConfig()
}

// File returns the config file in use, empty when running on defaults.
func (c *Config) File() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

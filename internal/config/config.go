package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type JWT struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type Admin struct {
	User       string   `mapstructure:"user"`
	Additional []string `mapstructure:"additional"`
}

// IsPrimary reports whether username is the primary admin.
func (a Admin) IsPrimary(username string) bool {
	return a.User != "" && username == a.User
}

// CanResetDJ reports whether username may vacate the booth.
func (a Admin) CanResetDJ(username string) bool {
	if a.IsPrimary(username) {
		return true
	}
	for _, u := range a.Additional {
		if u != "" && u == username {
			return true
		}
	}
	return false
}

type Store struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Room struct {
	MessageBuffer     int           `mapstructure:"message_buffer"`
	DriftTolerance    time.Duration `mapstructure:"drift_tolerance"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	MaxStreams        int           `mapstructure:"max_streams"`
	MaxDJHold         time.Duration `mapstructure:"max_dj_hold"`
	Backpressure      string        `mapstructure:"backpressure"`
}

type Rate struct {
	Window    time.Duration `mapstructure:"window"`
	MaxEvents int           `mapstructure:"max_events"`
}

type Limits struct {
	MessageMax      int `mapstructure:"message_max"`
	AnnouncementMax int `mapstructure:"announcement_max"`
	NameStyleMax    int `mapstructure:"name_style_max"`
	StatusMax       int `mapstructure:"status_max"`
	PasswordMin     int `mapstructure:"password_min"`
	BcryptCost      int `mapstructure:"bcrypt_cost"`
}

type Config struct {
	Mode           string        `mapstructure:"mode"`
	LogLevel       string        `mapstructure:"log_level"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	Secret         string        `mapstructure:"secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ICEServers     []string      `mapstructure:"ice_servers"`

	JWT    JWT    `mapstructure:"jwt"`
	Admin  Admin  `mapstructure:"admin"`
	Store  Store  `mapstructure:"store"`
	Room   Room   `mapstructure:"room"`
	Rate   Rate   `mapstructure:"rate"`
	Limits Limits `mapstructure:"limits"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "change-me")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.ttl", "168h")
	v.SetDefault("admin.user", "")
	v.SetDefault("admin.additional", []string{})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:room.db")

	v.SetDefault("room.message_buffer", 50)
	v.SetDefault("room.drift_tolerance", "2s")
	v.SetDefault("room.heartbeat_interval", "5s")
	v.SetDefault("room.reconcile_interval", "10s")
	v.SetDefault("room.max_streams", 10)
	v.SetDefault("room.max_dj_hold", "0s")
	v.SetDefault("room.backpressure", "drop")

	v.SetDefault("rate.window", "1s")
	v.SetDefault("rate.max_events", 10)

	v.SetDefault("limits.message_max", 500)
	v.SetDefault("limits.announcement_max", 200)
	v.SetDefault("limits.name_style_max", 50)
	v.SetDefault("limits.status_max", 100)
	v.SetDefault("limits.password_min", 8)
	v.SetDefault("limits.bcrypt_cost", 10)
}

func newViper() (*viper.Viper, string) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("ROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v, fileName
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func Load() (*Config, error) {
	cfg, _, err := load()
	return cfg, err
}

func load() (*Config, *viper.Viper, error) {
	v, fileName := newViper()

	found := true
	if err := v.ReadInConfig(); err != nil {
		found = false
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s | Store: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath, cfg.Store.Driver)
	if !found {
		return cfg, nil, nil
	}
	return cfg, v, nil
}

// LoadWatched loads the config and, when it came from a file, re-reads it on
// every change and hands the fresh Config to onChange. Only settings that are
// read at use time (such as the admin list) take effect without a restart.
func LoadWatched(onChange func(*Config)) (*Config, error) {
	cfg, v, err := load()
	if err != nil || v == nil {
		return cfg, err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			fmt.Printf("⚠️ Config reload failed (%s): %v\n", e.Name, err)
			return
		}
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

// Package config loads settings from defaults, an optional config file,
// INTERSECT_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "INTERSECT"

type Config struct {
	Join       JoinConfig       `mapstructure:"join"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Output     OutputConfig     `mapstructure:"output"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
}

type JoinConfig struct {
	Workers       int `mapstructure:"workers"        validate:"min=1,max=1024"`
	ProgressEvery int `mapstructure:"progress_every" validate:"min=1"`
}

type ProjectionConfig struct {
	KmPerLat float64 `mapstructure:"km_per_lat" validate:"gt=0"`
	KmPerLng float64 `mapstructure:"km_per_lng" validate:"gt=0"`
}

type OutputConfig struct {
	Suffix string `mapstructure:"suffix" validate:"required"`
	Sheet  string `mapstructure:"sheet"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"    validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAge     int    `mapstructure:"max_age"     validate:"min=0"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"       validate:"required"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"   validate:"required_with=Username"`
	Secret    string `mapstructure:"secret"     validate:"required_with=Username"`
	UploadDir string `mapstructure:"upload_dir" validate:"required"`
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

// AuthEnabled reports whether the job routes sit behind a login.
func (s ServerConfig) AuthEnabled() bool {
	return s.Username != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("join.workers", 4)
	v.SetDefault("join.progress_every", 10000)
	v.SetDefault("projection.km_per_lat", 111.325)
	v.SetDefault("projection.km_per_lng", 111.12)
	v.SetDefault("output.suffix", ".out")
	v.SetDefault("output.sheet", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("server.addr", ":9595")
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.secret", "")
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.output_dir", "output")
}

// RegisterFlags declares the flags that override config keys.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (toml, yaml or json)")
	fs.IntP("workers", "w", 4, "number of join workers")
	fs.Int("progress-every", 10000, "log progress every N outer points")
	fs.String("suffix", ".out", "suffix appended to each input path for its result file")
	fs.String("sheet", "", "sheet to read from .xlsx inputs (default: first sheet)")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "text", "text or json")
	fs.String("log-file", "", "also log to this file, rotated")
	fs.String("addr", ":9595", "listen address in --serve mode")
}

var flagKeys = map[string]string{
	"workers":        "join.workers",
	"progress-every": "join.progress_every",
	"suffix":         "output.suffix",
	"sheet":          "output.sheet",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-file":       "log.file",
	"addr":           "server.addr",
}

// Loader owns the viper instance so a watched file can be re-read later.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate

	mu      sync.RWMutex
	current *Config
}

func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, validate: validator.New()}
}

// Load reads the optional file at path, binds fs (may be nil) and returns a
// validated Config.
func (l *Loader) Load(path string, fs *pflag.FlagSet) (*Config, error) {
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := l.v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Current returns the most recently loaded valid config.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch re-reads the config file on change. Invalid edits are reported to
// onError and the previous config stays current.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(event fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", event.Name, err))
			}
			return
		}
		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

// Load is a one-shot helper around a fresh Loader.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	return NewLoader().Load(path, fs)
}

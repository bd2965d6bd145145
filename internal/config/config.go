// Package config loads securemsg settings from YAML with SECUREMSG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SECUREMSG_"

type Config struct {
	Log struct {
		// dev | prod
		Env        string `yaml:"env" validate:"oneof=dev prod"`
		Level      string `yaml:"level" validate:"oneof=debug info warn warning error"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
		MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
		MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	} `yaml:"log"`

	Keys struct {
		// Dir holds public.key, private.key and fetched <email>.key files.
		Dir         string `yaml:"dir" validate:"required"`
		DefaultSize int    `yaml:"default_size" validate:"gte=512,multiple8"`
	} `yaml:"keys"`

	Primes struct {
		// Workers 0 means one per CPU.
		Workers int `yaml:"workers" validate:"gte=0"`
		Rounds  int `yaml:"rounds" validate:"gte=1,lte=128"`
	} `yaml:"primes"`

	Client struct {
		BaseURL  string        `yaml:"base_url" validate:"required,url"`
		Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
		CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	} `yaml:"client"`

	Server struct {
		Addr       string        `yaml:"addr" validate:"required"`
		Store      string        `yaml:"store" validate:"oneof=memory redis"`
		MessageTTL time.Duration `yaml:"message_ttl" validate:"gte=0"`
		Redis      struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db" validate:"gte=0"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"server"`
}

// Default returns the configuration used when no file is given. The TTLs are set only here so
// that an explicit 0 in the file keeps caching and message expiry disabled.
func Default() *Config {
	var c Config
	c.applyDefaults()
	c.Client.CacheTTL = 5 * time.Minute
	c.Server.MessageTTL = 24 * time.Hour
	return &c
}

// Load reads the YAML file at path (optional), fills defaults, applies SECUREMSG_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	c.applyDefaults()
	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Keys.Dir == "" {
		c.Keys.Dir = "."
	}
	if c.Keys.DefaultSize == 0 {
		c.Keys.DefaultSize = 1024
	}
	if c.Primes.Rounds == 0 {
		c.Primes.Rounds = 10
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8080"
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 30 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Store == "" {
		c.Server.Store = "memory"
	}
	if c.Server.Redis.Prefix == "" {
		c.Server.Redis.Prefix = "securemsg:"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("multiple8", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%8 == 0
	})
	return v
}

// Validate checks field constraints and reports every failing field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	if c.Server.Store == "redis" && c.Server.Redis.Addr == "" {
		return errors.New("invalid config: server.redis.addr is required for the redis store")
	}
	return nil
}

func describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
	}
	return fmt.Errorf("invalid config: %w", err)
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return i, true, nil
}

func getEnvDur(key string) (time.Duration, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, false, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return d, true, nil
}

func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"LOG_ENV":      &c.Log.Env,
		"LOG_LEVEL":    &c.Log.Level,
		"LOG_FILE":     &c.Log.File,
		"KEYS_DIR":     &c.Keys.Dir,
		"SERVER_URL":   &c.Client.BaseURL,
		"SERVER_ADDR":  &c.Server.Addr,
		"SERVER_STORE": &c.Server.Store,
		"REDIS_ADDR":   &c.Server.Redis.Addr,
		"REDIS_PREFIX": &c.Server.Redis.Prefix,
	}
	for key, dst := range strs {
		if v, ok := getEnvStr(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"KEY_SIZE":      &c.Keys.DefaultSize,
		"PRIME_WORKERS": &c.Primes.Workers,
		"PRIME_ROUNDS":  &c.Primes.Rounds,
		"REDIS_DB":      &c.Server.Redis.DB,
	}
	for key, dst := range ints {
		v, ok, err := getEnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	durs := map[string]*time.Duration{
		"CLIENT_TIMEOUT":     &c.Client.Timeout,
		"CLIENT_CACHE_TTL":   &c.Client.CacheTTL,
		"SERVER_MESSAGE_TTL": &c.Server.MessageTTL,
	}
	for key, dst := range durs {
		v, ok, err := getEnvDur(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	if c.Log.Env != "" {
		c.Log.Env = strings.ToLower(c.Log.Env)
	}
	return nil
}

// Package config loads the rtmctl TOML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/protocol/session"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the resolved watcher configuration.
type Config struct {
	URL                string
	SVNRev             string
	Session            session.Config
	AdminAddr          string
	AdminCORSOrigins   []string
	Reconnect          bool
	MaxConnectAttempts int
	PingInterval       time.Duration
	LogLevel           string
}

type fileConfig struct {
	URL                string   `toml:"url"`
	SVNRev             string   `toml:"svn_rev"`
	ConnectTimeout     string   `toml:"connect_timeout"`
	HandshakeTimeout   string   `toml:"handshake_timeout"`
	WriteTimeout       string   `toml:"write_timeout"`
	MaxMessageBytes    int      `toml:"max_message_bytes"`
	ReadChunkBytes     int      `toml:"read_chunk_bytes"`
	SendRate           float64  `toml:"send_rate"`
	SendBurst          int      `toml:"send_burst"`
	BackoffInitial     string   `toml:"backoff_initial"`
	BackoffMax         string   `toml:"backoff_max"`
	PingInterval       string   `toml:"ping_interval"`
	AdminAddr          string   `toml:"admin_addr"`
	AdminCORSOrigins   []string `toml:"admin_cors_origins"`
	Reconnect          bool     `toml:"reconnect"`
	MaxConnectAttempts int      `toml:"max_connect_attempts"`
	LogLevel           string   `toml:"log_level"`
}

func Default() Config {
	return Config{
		Session:   session.DefaultConfig(),
		AdminAddr:    "127.0.0.1:7070",
		Reconnect:    true,
		PingInterval: 30 * time.Second,
		LogLevel:     "info",
	}
}

// Load reads path and applies every defined key on top of Default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load rtmctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}
	cfg, err := apply(Default(), raw, meta)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode is Load for an in-memory document.
func Decode(doc string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(doc, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("decode rtmctl config: %w", err)
	}
	cfg, err := apply(Default(), raw, meta)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("svn_rev") {
		cfg.SVNRev = strings.TrimSpace(raw.SVNRev)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Session.HandshakeTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Session.WriteTimeout},
		{"backoff_initial", raw.BackoffInitial, &cfg.Session.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Session.Backoff.MaxDelay},
		{"ping_interval", raw.PingInterval, &cfg.PingInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_message_bytes") {
		cfg.Session.Limits.MaxMessageBytes = raw.MaxMessageBytes
	}
	if meta.IsDefined("read_chunk_bytes") {
		cfg.Session.Limits.ReadChunkBytes = raw.ReadChunkBytes
	}
	if meta.IsDefined("send_rate") {
		cfg.Session.SendRate = raw.SendRate
	}
	if meta.IsDefined("send_burst") {
		cfg.Session.SendBurst = raw.SendBurst
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_cors_origins") {
		cfg.AdminCORSOrigins = raw.AdminCORSOrigins
	}
	if meta.IsDefined("reconnect") {
		cfg.Reconnect = raw.Reconnect
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalid)
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("%w: url must be ws:// or wss://, got %q", ErrInvalid, c.URL)
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("%w: ping_interval must be >= 0", ErrInvalid)
	}
	if c.MaxConnectAttempts < 0 {
		return fmt.Errorf("%w: max_connect_attempts must be >= 0", ErrInvalid)
	}
	if c.Session.Limits.MaxMessageBytes < 0 || c.Session.Limits.ReadChunkBytes < 0 {
		return fmt.Errorf("%w: frame limits must be >= 0", ErrInvalid)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel)
	}
	if err := c.Session.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

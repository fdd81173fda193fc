package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/goal-probability/internal/config"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config holds the serve subcommand's settings.
type Config struct {
	Address string `yaml:"address"`
	// MaxBodySize caps evaluate and rank request bodies, e.g. "256K" or "1MB".
	MaxBodySize     string               `yaml:"maxBodySize"`
	RankLimit       RateLimit            `yaml:"rankLimit"`
	ShutdownTimeout time.Duration        `yaml:"shutdownTimeout"`
	Logging         config.LoggingConfig `yaml:"logging"`

	maxBodyBytes int64
}

// RateLimit bounds /api/rank, which runs one simulation per candidate.
type RateLimit struct {
	PerSecond float64 `yaml:"perSecond"`
	Burst     int     `yaml:"burst"`
}

func defaultConfig() *Config {
	return &Config{
		Address: constants.DefaultServerAddress,
		RankLimit: RateLimit{
			PerSecond: constants.DefaultRankRatePerSecond,
			Burst:     constants.DefaultRankBurst,
		},
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		maxBodyBytes:    constants.DefaultMaxBodyBytes,
	}
}

// LoadConfig reads the server config at path. A missing file, or an empty
// path, yields the defaults. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse server config %s: %w", path, err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, fmt.Errorf("server config %s: %w", path, err)
	}
	return cfg, nil
}

// MaxBodyBytes is MaxBodySize in bytes.
func (c *Config) MaxBodyBytes() int64 {
	return c.maxBodyBytes
}

// resolve fills unset fields with defaults and parses MaxBodySize.
func (c *Config) resolve() error {
	def := defaultConfig()
	if c.Address == "" {
		c.Address = def.Address
	}
	if c.RankLimit.PerSecond <= 0 {
		c.RankLimit.PerSecond = def.RankLimit.PerSecond
	}
	if c.RankLimit.Burst <= 0 {
		c.RankLimit.Burst = def.RankLimit.Burst
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}

	n, err := ParseSize(c.MaxBodySize)
	if err != nil {
		return err
	}
	if n == 0 {
		n = def.maxBodyBytes
	}
	c.maxBodyBytes = n
	return nil
}

var sizeUnits = []struct {
	suffix string
	scale  int64
}{
	{"KB", 1 << 10}, {"MB", 1 << 20}, {"GB", 1 << 30},
	{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30},
	{"B", 1},
}

// ParseSize converts sizes like "512", "256K" or "3MB" (binary units, case
// insensitive) to bytes. A blank value is the default body limit.
func ParseSize(value string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return constants.DefaultMaxBodyBytes, nil
	}

	scale := int64(1)
	for _, u := range sizeUnits {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			s, scale = strings.TrimSpace(num), u.scale
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", value)
	}
	if n > math.MaxInt64/scale {
		return 0, fmt.Errorf("size %q overflows", value)
	}
	return n * scale, nil
}

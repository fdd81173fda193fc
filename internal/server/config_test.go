package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/goal-probability/pkg/constants"
)

func writeServerConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server-config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%q) error = %v", path, err)
		}
		if cfg.Address != constants.DefaultServerAddress {
			t.Fatalf("expected default address, got %q", cfg.Address)
		}
		if cfg.MaxBodyBytes() != constants.DefaultMaxBodyBytes {
			t.Fatalf("expected default body limit, got %d", cfg.MaxBodyBytes())
		}
		if cfg.RankLimit.PerSecond != constants.DefaultRankRatePerSecond || cfg.RankLimit.Burst != constants.DefaultRankBurst {
			t.Fatalf("expected default rank limit, got %+v", cfg.RankLimit)
		}
		if cfg.ShutdownTimeout != constants.DefaultShutdownTimeout {
			t.Fatalf("expected default shutdown timeout, got %s", cfg.ShutdownTimeout)
		}
		if cfg.Logging.Level != "" || cfg.Logging.Format != "" || cfg.Logging.OutputFile != "" {
			t.Fatalf("expected empty logging defaults, got %+v", cfg.Logging)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeServerConfig(t, `address: 127.0.0.1:9000
maxBodySize: 2M
rankLimit:
  perSecond: 0.5
  burst: 1
shutdownTimeout: 3s
logging:
  level: debug
  format: console
  outputFile: /tmp/server.log
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("expected address override, got %s", cfg.Address)
	}
	if cfg.MaxBodyBytes() != 2<<20 {
		t.Fatalf("expected body limit override, got %d", cfg.MaxBodyBytes())
	}
	if cfg.RankLimit.PerSecond != 0.5 || cfg.RankLimit.Burst != 1 {
		t.Fatalf("expected rank limit overrides, got %+v", cfg.RankLimit)
	}
	if cfg.ShutdownTimeout.Seconds() != 3 {
		t.Fatalf("expected shutdown timeout 3s, got %s", cfg.ShutdownTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" || cfg.Logging.OutputFile != "/tmp/server.log" {
		t.Fatalf("expected logging overrides, got %+v", cfg.Logging)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeServerConfig(t, "rankLimit:\n  burst: 9\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.RankLimit.Burst != 9 || cfg.RankLimit.PerSecond != constants.DefaultRankRatePerSecond {
		t.Fatalf("expected burst override with default rate, got %+v", cfg.RankLimit)
	}
	if cfg.MaxBodyBytes() != constants.DefaultMaxBodyBytes {
		t.Fatalf("expected default body limit, got %d", cfg.MaxBodyBytes())
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeServerConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Address != constants.DefaultServerAddress {
		t.Fatalf("expected default address, got %q", cfg.Address)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"bad size":    "maxBodySize: invalid",
		"unknown key": "maxUploadSize: 1M",
		"bad yaml":    "address: [",
		"bad timeout": "shutdownTimeout: soon",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeServerConfig(t, body))
			if err == nil {
				t.Fatal("expected error but got nil")
			}
			if !strings.Contains(err.Error(), "server config") {
				t.Fatalf("expected error to name the server config, got %v", err)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := map[string]int64{
		"":          constants.DefaultMaxBodyBytes,
		"0":         0,
		"1024":      1024,
		"512b":      512,
		"256K":      256 << 10,
		"1m":        1 << 20,
		"3MB":       3 << 20,
		"2 G":       2 << 30,
		"  4096   ": 4096,
	}

	for input, expected := range tests {
		got, err := ParseSize(input)
		if err != nil {
			t.Fatalf("ParseSize(%q) returned error: %v", input, err)
		}
		if got != expected {
			t.Fatalf("ParseSize(%q) = %d, expected %d", input, got, expected)
		}
	}

	for _, bad := range []string{"1TB", "abc", "-5K", "9223372036854775807K"} {
		if _, err := ParseSize(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

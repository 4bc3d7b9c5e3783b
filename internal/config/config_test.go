package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownKeys = []string{
	"DOMAIN", "HTTP_PORT", "HTTPS_PORT", "TLS_ENABLED", "TLS_STORAGE_PATH",
	"ACME_EMAIL", "CF_API_TOKEN", "ACME_STAGING", "TRANSPORT", "MAX_BODY_SIZE",
	"RESOLVE_TIMEOUT", "AUTH_FILE", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"METRICS_PORT", "PPROF_ENABLED", "PPROF_PORT", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every variable the loader reads and restores them when the
// test ends.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range knownKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		val      string
		def      string
		expected string
	}{
		{
			name:     "returns existing env",
			key:      "TEST_ENV_EXIST",
			val:      "value",
			def:      "default",
			expected: "value",
		},
		{
			name:     "returns default when env missing",
			key:      "TEST_ENV_MISSING",
			val:      "",
			def:      "default",
			expected: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			assert.Equal(t, tt.expected, getenv(tt.key, tt.def))
		})
	}
}

func TestGetenvBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		val      string
		def      bool
		expected bool
	}{
		{name: "returns true when env is true", key: "TEST_BOOL_TRUE", val: "true", def: false, expected: true},
		{name: "returns false when env is false", key: "TEST_BOOL_FALSE", val: "false", def: true, expected: false},
		{name: "returns default when env missing", key: "TEST_BOOL_MISSING", val: "", def: true, expected: true},
		{name: "returns false when env is not true", key: "TEST_BOOL_INVALID", val: "yes", def: true, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			assert.Equal(t, tt.expected, getenvBool(tt.key, tt.def))
		})
	}
}

func TestParseTransport(t *testing.T) {
	tests := []struct {
		name      string
		val       string
		expect    TransportKind
		expectErr bool
	}{
		{"raw", "raw", TransportRaw, false},
		{"fasthttp", "fasthttp", TransportFastHTTP, false},
		{"uppercase", "FASTHTTP", TransportFastHTTP, false},
		{"invalid", "grpc", "", true},
		{"empty (default)", "", TransportRaw, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRANSPORT", tt.val)
			kind, err := parseTransport()
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expect, kind)
		})
	}
}

func TestParseMaxBodySize(t *testing.T) {
	tests := []struct {
		name        string
		val         string
		expect      int64
		wantWarning bool
	}{
		{"valid size", "2048", 2048, false},
		{"default size", "", defaultMaxBodySize, false},
		{"lower bound", "1024", 1024, false},
		{"upper bound", "1073741824", 1 << 30, false},
		{"too small", "512", defaultMaxBodySize, true},
		{"too large", "2147483648", defaultMaxBodySize, true},
		{"invalid format", "abc", defaultMaxBodySize, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MAX_BODY_SIZE", tt.val)
			c := &config{}
			assert.Equal(t, tt.expect, c.parseMaxBodySize())
			if tt.wantWarning {
				require.Len(t, c.warnings, 1)
				assert.Contains(t, c.warnings[0], "MAX_BODY_SIZE")
			} else {
				assert.Empty(t, c.warnings)
			}
		})
	}
}

func TestParseResolveTimeout(t *testing.T) {
	tests := []struct {
		name        string
		val         string
		expect      time.Duration
		wantWarning bool
	}{
		{"valid", "500ms", 500 * time.Millisecond, false},
		{"default", "", 2 * time.Second, false},
		{"negative", "-1s", 2 * time.Second, true},
		{"garbage", "soon", 2 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RESOLVE_TIMEOUT", tt.val)
			c := &config{}
			assert.Equal(t, tt.expect, c.parseResolveTimeout())
			assert.Equal(t, tt.wantWarning, len(c.warnings) == 1)
		})
	}
}

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		name      string
		rps       string
		burst     string
		wantRPS   float64
		wantBurst int
		expectErr bool
	}{
		{name: "defaults", wantRPS: 0, wantBurst: 10},
		{name: "custom", rps: "2.5", burst: "5", wantRPS: 2.5, wantBurst: 5},
		{name: "negative rps", rps: "-1", expectErr: true},
		{name: "bad rps", rps: "fast", expectErr: true},
		{name: "zero burst", rps: "1", burst: "0", expectErr: true},
		{name: "bad burst", burst: "many", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RATE_LIMIT_RPS", tt.rps)
			t.Setenv("RATE_LIMIT_BURST", tt.burst)
			rps, burst, err := parseRateLimit()
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRPS, rps)
			assert.Equal(t, tt.wantBurst, burst)
		})
	}
}

func TestParse(t *testing.T) {
	authFile := filepath.Join(t.TempDir(), "users")
	require.NoError(t, os.WriteFile(authFile, []byte("# empty\n"), 0o600))

	tests := []struct {
		name      string
		envs      map[string]string
		expectErr bool
	}{
		{
			name:      "minimal valid config",
			envs:      map[string]string{"DOMAIN": "example.com"},
			expectErr: false,
		},
		{
			name:      "TLS enabled without token",
			envs:      map[string]string{"TLS_ENABLED": "true"},
			expectErr: true,
		},
		{
			name:      "TLS enabled with token",
			envs:      map[string]string{"TLS_ENABLED": "true", "CF_API_TOKEN": "secret"},
			expectErr: false,
		},
		{
			name:      "invalid transport",
			envs:      map[string]string{"TRANSPORT": "quic"},
			expectErr: true,
		},
		{
			name:      "auth file missing",
			envs:      map[string]string{"AUTH_FILE": filepath.Join(t.TempDir(), "nope")},
			expectErr: true,
		},
		{
			name:      "auth file present",
			envs:      map[string]string{"AUTH_FILE": authFile},
			expectErr: false,
		},
		{
			name:      "invalid rate limit",
			envs:      map[string]string{"RATE_LIMIT_RPS": "-3"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envs {
				t.Setenv(k, v)
			}
			cfg, err := parse()
			if tt.expectErr {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, cfg)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Domain())
	assert.Equal(t, "3000", cfg.HTTPPort())
	assert.Equal(t, "3443", cfg.HTTPSPort())
	assert.False(t, cfg.TLSEnabled())
	assert.Equal(t, "certs/tls/", cfg.TLSStoragePath())
	assert.Equal(t, "admin@localhost", cfg.ACMEEmail())
	assert.Equal(t, TransportRaw, cfg.Transport())
	assert.Equal(t, int64(10<<20), cfg.MaxBodySize())
	assert.Equal(t, 2*time.Second, cfg.ResolveTimeout())
	assert.Equal(t, "", cfg.AuthFile())
	assert.Equal(t, float64(0), cfg.RateLimitRPS())
	assert.Equal(t, 10, cfg.RateLimitBurst())
	assert.Equal(t, "9090", cfg.MetricsPort())
	assert.False(t, cfg.PprofEnabled())
	assert.Equal(t, "6060", cfg.PprofPort())
	assert.Equal(t, "info", cfg.LogLevel())
	assert.Equal(t, "json", cfg.LogFormat())
	assert.Empty(t, cfg.Warnings())
}

func TestGetters(t *testing.T) {
	authFile := filepath.Join(t.TempDir(), "users")
	require.NoError(t, os.WriteFile(authFile, nil, 0o600))

	envs := map[string]string{
		"DOMAIN":           "example.com",
		"HTTP_PORT":        "80",
		"HTTPS_PORT":       "443",
		"TLS_ENABLED":      "true",
		"TLS_STORAGE_PATH": "/var/lib/reqlens",
		"ACME_EMAIL":       "test@example.com",
		"CF_API_TOKEN":     "token",
		"ACME_STAGING":     "true",
		"TRANSPORT":        "fasthttp",
		"MAX_BODY_SIZE":    "4096",
		"RESOLVE_TIMEOUT":  "250ms",
		"AUTH_FILE":        authFile,
		"RATE_LIMIT_RPS":   "20",
		"RATE_LIMIT_BURST": "40",
		"METRICS_PORT":     "",
		"PPROF_ENABLED":    "true",
		"PPROF_PORT":       "7070",
		"LOG_LEVEL":        "DEBUG",
		"LOG_FORMAT":       "console",
	}

	clearEnv(t)
	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, "example.com", cfg.Domain())
	assert.Equal(t, "80", cfg.HTTPPort())
	assert.Equal(t, "443", cfg.HTTPSPort())
	assert.True(t, cfg.TLSEnabled())
	assert.Equal(t, "/var/lib/reqlens", cfg.TLSStoragePath())
	assert.Equal(t, "test@example.com", cfg.ACMEEmail())
	assert.Equal(t, "token", cfg.CFAPIToken())
	assert.True(t, cfg.ACMEStaging())
	assert.Equal(t, TransportFastHTTP, cfg.Transport())
	assert.Equal(t, int64(4096), cfg.MaxBodySize())
	assert.Equal(t, 250*time.Millisecond, cfg.ResolveTimeout())
	assert.Equal(t, authFile, cfg.AuthFile())
	assert.Equal(t, float64(20), cfg.RateLimitRPS())
	assert.Equal(t, 40, cfg.RateLimitBurst())
	assert.Equal(t, "", cfg.MetricsPort())
	assert.True(t, cfg.PprofEnabled())
	assert.Equal(t, "7070", cfg.PprofPort())
	assert.Equal(t, "debug", cfg.LogLevel())
	assert.Equal(t, "console", cfg.LogFormat())
}

func TestMustLoad(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DOMAIN", "example.com")
		cfg, err := MustLoad()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)
	})

	t.Run("loadEnvFile error", func(t *testing.T) {
		err := os.Mkdir(".env", 0755)
		assert.NoError(t, err)
		defer os.Remove(".env")

		cfg, err := MustLoad()
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("parse error", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRANSPORT", "invalid")
		cfg, err := MustLoad()
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("file exists", func(t *testing.T) {
		t.Setenv("TEST_ENV_FILE", "")
		require.NoError(t, os.Unsetenv("TEST_ENV_FILE"))
		err := os.WriteFile(".env", []byte("TEST_ENV_FILE=true"), 0644)
		assert.NoError(t, err)
		defer os.Remove(".env")

		err = loadEnvFile()
		assert.NoError(t, err)
		assert.Equal(t, "true", os.Getenv("TEST_ENV_FILE"))
	})

	t.Run("file missing", func(t *testing.T) {
		_ = os.Remove(".env")
		err := loadEnvFile()
		assert.NoError(t, err)
	})
}

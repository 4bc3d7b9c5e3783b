package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type TransportKind string

const (
	TransportRaw      TransportKind = "raw"
	TransportFastHTTP TransportKind = "fasthttp"
)

const (
	defaultMaxBodySize    = 10 << 20
	minMaxBodySize        = 1 << 10
	maxMaxBodySize        = 1 << 30
	defaultResolveTimeout = 2 * time.Second
	defaultRateLimitBurst = 10
)

type config struct {
	domain string

	httpPort  string
	httpsPort string

	tlsEnabled     bool
	tlsStoragePath string
	acmeEmail      string
	cfAPIToken     string
	acmeStaging    bool

	transport TransportKind

	maxBodySize    int64
	resolveTimeout time.Duration

	authFile       string
	rateLimitRPS   float64
	rateLimitBurst int

	metricsPort string

	pprofEnabled bool
	pprofPort    string

	logLevel  string
	logFormat string

	warnings []string
}

func parse() (*config, error) {
	c := &config{}

	transport, err := parseTransport()
	if err != nil {
		return nil, err
	}
	c.transport = transport

	c.domain = getenv("DOMAIN", "localhost")

	c.httpPort = getenv("HTTP_PORT", "3000")
	c.httpsPort = getenv("HTTPS_PORT", "3443")

	c.tlsEnabled = getenvBool("TLS_ENABLED", false)
	c.tlsStoragePath = getenv("TLS_STORAGE_PATH", "certs/tls/")

	c.acmeEmail = getenv("ACME_EMAIL", "admin@"+c.domain)
	c.acmeStaging = getenvBool("ACME_STAGING", false)

	c.cfAPIToken = getenv("CF_API_TOKEN", "")
	if c.tlsEnabled && c.cfAPIToken == "" {
		return nil, fmt.Errorf("CF_API_TOKEN is required when TLS is enabled")
	}

	c.maxBodySize = c.parseMaxBodySize()
	c.resolveTimeout = c.parseResolveTimeout()

	c.authFile = getenv("AUTH_FILE", "")
	if c.authFile != "" {
		if _, err := os.Stat(c.authFile); err != nil {
			return nil, fmt.Errorf("AUTH_FILE: %w", err)
		}
	}

	rps, burst, err := parseRateLimit()
	if err != nil {
		return nil, err
	}
	c.rateLimitRPS = rps
	c.rateLimitBurst = burst

	c.metricsPort = os.Getenv("METRICS_PORT")
	if _, set := os.LookupEnv("METRICS_PORT"); !set {
		c.metricsPort = "9090"
	}

	c.pprofEnabled = getenvBool("PPROF_ENABLED", false)
	c.pprofPort = getenv("PPROF_PORT", "6060")

	c.logLevel = strings.ToLower(getenv("LOG_LEVEL", "info"))
	c.logFormat = strings.ToLower(getenv("LOG_FORMAT", "json"))

	return c, nil
}

func loadEnvFile() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func parseTransport() (TransportKind, error) {
	switch TransportKind(strings.ToLower(getenv("TRANSPORT", string(TransportRaw)))) {
	case TransportRaw:
		return TransportRaw, nil
	case TransportFastHTTP:
		return TransportFastHTTP, nil
	default:
		return "", fmt.Errorf("invalid TRANSPORT value")
	}
}

func (c *config) parseMaxBodySize() int64 {
	raw := getenv("MAX_BODY_SIZE", strconv.Itoa(defaultMaxBodySize))
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size < minMaxBodySize || size > maxMaxBodySize {
		c.warnings = append(c.warnings, fmt.Sprintf("invalid MAX_BODY_SIZE %q, falling back to %d", raw, defaultMaxBodySize))
		return defaultMaxBodySize
	}
	return size
}

func (c *config) parseResolveTimeout() time.Duration {
	raw := getenv("RESOLVE_TIMEOUT", defaultResolveTimeout.String())
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		c.warnings = append(c.warnings, fmt.Sprintf("invalid RESOLVE_TIMEOUT %q, falling back to %s", raw, defaultResolveTimeout))
		return defaultResolveTimeout
	}
	return d
}

func parseRateLimit() (float64, int, error) {
	rps, err := strconv.ParseFloat(getenv("RATE_LIMIT_RPS", "0"), 64)
	if err != nil || rps < 0 {
		return 0, 0, fmt.Errorf("invalid RATE_LIMIT_RPS value")
	}

	burst, err := strconv.Atoi(getenv("RATE_LIMIT_BURST", strconv.Itoa(defaultRateLimitBurst)))
	if err != nil || burst < 1 {
		return 0, 0, fmt.Errorf("invalid RATE_LIMIT_BURST value")
	}

	return rps, burst, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val == "true"
}

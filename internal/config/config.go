package config

import "time"

type Config interface {
	Domain() string

	HTTPPort() string
	HTTPSPort() string

	TLSEnabled() bool
	TLSStoragePath() string
	ACMEEmail() string
	CFAPIToken() string
	ACMEStaging() bool

	Transport() TransportKind

	MaxBodySize() int64
	ResolveTimeout() time.Duration

	AuthFile() string
	RateLimitRPS() float64
	RateLimitBurst() int

	MetricsPort() string

	PprofEnabled() bool
	PprofPort() string

	LogLevel() string
	LogFormat() string

	// Warnings lists values that were rejected and replaced by defaults.
	Warnings() []string
}

func MustLoad() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg, err := parse()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *config) Domain() string                { return c.domain }
func (c *config) HTTPPort() string              { return c.httpPort }
func (c *config) HTTPSPort() string             { return c.httpsPort }
func (c *config) TLSEnabled() bool              { return c.tlsEnabled }
func (c *config) TLSStoragePath() string        { return c.tlsStoragePath }
func (c *config) ACMEEmail() string             { return c.acmeEmail }
func (c *config) CFAPIToken() string            { return c.cfAPIToken }
func (c *config) ACMEStaging() bool             { return c.acmeStaging }
func (c *config) Transport() TransportKind      { return c.transport }
func (c *config) MaxBodySize() int64            { return c.maxBodySize }
func (c *config) ResolveTimeout() time.Duration { return c.resolveTimeout }
func (c *config) AuthFile() string              { return c.authFile }
func (c *config) RateLimitRPS() float64         { return c.rateLimitRPS }
func (c *config) RateLimitBurst() int           { return c.rateLimitBurst }
func (c *config) MetricsPort() string           { return c.metricsPort }
func (c *config) PprofEnabled() bool            { return c.pprofEnabled }
func (c *config) PprofPort() string             { return c.pprofPort }
func (c *config) LogLevel() string              { return c.logLevel }
func (c *config) LogFormat() string             { return c.logFormat }
func (c *config) Warnings() []string            { return c.warnings }

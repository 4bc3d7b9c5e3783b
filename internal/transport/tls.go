package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/cloudflare"
	"go.uber.org/zap"
)

var (
	ErrNoCertificate = errors.New("no certificate available")
	ErrMissingToken  = errors.New("CF_API_TOKEN is required for automatic certificate generation")
)

const (
	certWatchInterval = 30 * time.Second
	renewBefore       = 30 * 24 * time.Hour
)

// TLSSettings is the part of the configuration the certificate manager reads.
type TLSSettings interface {
	Domain() string
	TLSStoragePath() string
	ACMEEmail() string
	CFAPIToken() string
	ACMEStaging() bool
}

// NewTLSConfig prefers cert.pem and privkey.pem under the storage path when
// they cover the domain and are not about to expire. Otherwise a certificate
// is obtained from Let's Encrypt with a Cloudflare DNS-01 challenge. User
// certificates are reloaded when they change on disk until done is closed.
func NewTLSConfig(settings TLSSettings, logger *zap.Logger, done <-chan struct{}) (*tls.Config, error) {
	tm := createTLSManager(settings, logger)
	if err := tm.initialize(done); err != nil {
		return nil, err
	}
	return tm.getTLSConfig(), nil
}

type tlsManager struct {
	settings TLSSettings
	logger   *zap.Logger

	certPath    string
	keyPath     string
	storagePath string

	mu           sync.RWMutex
	userCert     *tls.Certificate
	magic        *certmagic.Config
	useCertMagic bool
}

func createTLSManager(settings TLSSettings, logger *zap.Logger) *tlsManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleanBase := filepath.Clean(settings.TLSStoragePath())

	return &tlsManager{
		settings:    settings,
		logger:      logger.Named("tls"),
		certPath:    filepath.Join(cleanBase, "cert.pem"),
		keyPath:     filepath.Join(cleanBase, "privkey.pem"),
		storagePath: filepath.Join(cleanBase, "certmagic"),
	}
}

func (tm *tlsManager) initialize(done <-chan struct{}) error {
	if tm.userCertsExistAndValid() {
		tm.logger.Info("using user-provided certificates", zap.String("cert", tm.certPath), zap.String("key", tm.keyPath))
		if err := tm.loadUserCerts(); err != nil {
			return fmt.Errorf("failed to load user certificates: %w", err)
		}
		go newCertWatcher(tm).watch(done, certWatchInterval)
		return nil
	}

	tm.logger.Info("user certificates missing or unusable, using CertMagic", zap.String("domain", tm.settings.Domain()))
	if err := tm.initCertMagic(); err != nil {
		return fmt.Errorf("failed to initialize CertMagic: %w", err)
	}
	return nil
}

func (tm *tlsManager) userCertsExistAndValid() bool {
	if !tm.certFilesExist() {
		return false
	}
	return tm.validateCertDomain(tm.certPath)
}

func (tm *tlsManager) certFilesExist() bool {
	for _, p := range []string{tm.certPath, tm.keyPath} {
		if _, err := os.Stat(p); err != nil {
			tm.logger.Debug("certificate file not usable", zap.String("path", p), zap.Error(err))
			return false
		}
	}
	return true
}

func (tm *tlsManager) loadUserCerts() error {
	cert, err := tls.LoadX509KeyPair(tm.certPath, tm.keyPath)
	if err != nil {
		return err
	}

	tm.mu.Lock()
	tm.userCert = &cert
	tm.useCertMagic = false
	tm.mu.Unlock()
	return nil
}

func (tm *tlsManager) initCertMagic() error {
	if tm.settings.CFAPIToken() == "" {
		return ErrMissingToken
	}
	if err := os.MkdirAll(tm.storagePath, 0700); err != nil {
		return fmt.Errorf("failed to create cert storage directory: %w", err)
	}

	magic := tm.createCertMagicConfig()
	domains := []string{tm.settings.Domain()}
	tm.logger.Info("requesting certificates", zap.Strings("domains", domains))
	if err := magic.ManageSync(context.Background(), domains); err != nil {
		return fmt.Errorf("failed to obtain certificates: %w", err)
	}

	tm.mu.Lock()
	tm.magic = magic
	tm.useCertMagic = true
	tm.mu.Unlock()
	return nil
}

func (tm *tlsManager) createCertMagicConfig() *certmagic.Config {
	var magic *certmagic.Config
	cache := certmagic.NewCache(certmagic.CacheOptions{
		GetConfigForCert: func(certmagic.Certificate) (*certmagic.Config, error) {
			return magic, nil
		},
	})
	magic = certmagic.New(cache, certmagic.Config{
		Storage: &certmagic.FileStorage{Path: tm.storagePath},
		Logger:  tm.logger,
	})

	issuer := certmagic.NewACMEIssuer(magic, certmagic.ACMEIssuer{
		Email:  tm.settings.ACMEEmail(),
		Agreed: true,
		DNS01Solver: &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{
				DNSProvider: &cloudflare.Provider{APIToken: tm.settings.CFAPIToken()},
			},
		},
		Logger: tm.logger,
	})
	if tm.settings.ACMEStaging() {
		issuer.CA = certmagic.LetsEncryptStagingCA
	} else {
		issuer.CA = certmagic.LetsEncryptProductionCA
	}
	tm.logger.Info("acme issuer configured", zap.String("ca", issuer.CA))

	magic.Issuers = []certmagic.Issuer{issuer}
	return magic
}

func (tm *tlsManager) getTLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: tm.getCertificate,
		MinVersion:     tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		ClientAuth: tls.NoClientCert,
	}
}

func (tm *tlsManager) getCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if tm.useCertMagic {
		return tm.magic.GetCertificate(hello)
	}
	if tm.userCert == nil {
		return nil, ErrNoCertificate
	}
	return tm.userCert, nil
}

// validateCertDomain reports whether the certificate at certPath covers the
// configured domain and stays valid beyond the renewal window.
func (tm *tlsManager) validateCertDomain(certPath string) bool {
	cert, err := loadAndParseCertificate(certPath)
	if err != nil {
		tm.logger.Warn("unusable certificate", zap.String("path", certPath), zap.Error(err))
		return false
	}

	if !isCertificateValid(cert, time.Now()) {
		tm.logger.Info("certificate expired or expiring soon", zap.Time("not_after", cert.NotAfter))
		return false
	}

	if err := cert.VerifyHostname(tm.settings.Domain()); err != nil {
		tm.logger.Info("certificate does not cover domain", zap.String("domain", tm.settings.Domain()), zap.Error(err))
		return false
	}
	return true
}

func loadAndParseCertificate(certPath string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	return x509.ParseCertificate(block.Bytes)
}

func isCertificateValid(cert *x509.Certificate, now time.Time) bool {
	return now.Add(renewBefore).Before(cert.NotAfter)
}

type certWatcher struct {
	tm          *tlsManager
	lastCertMod time.Time
	lastKeyMod  time.Time
}

func newCertWatcher(tm *tlsManager) *certWatcher {
	watcher := &certWatcher{tm: tm}
	if info, err := os.Stat(tm.certPath); err == nil {
		watcher.lastCertMod = info.ModTime()
	}
	if info, err := os.Stat(tm.keyPath); err == nil {
		watcher.lastKeyMod = info.ModTime()
	}
	return watcher
}

func (cw *certWatcher) watch(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if cw.checkAndReloadCerts() {
				return
			}
		}
	}
}

// checkAndReloadCerts returns true once the manager has switched to
// CertMagic and there is nothing left to watch.
func (cw *certWatcher) checkAndReloadCerts() bool {
	certInfo, certErr := os.Stat(cw.tm.certPath)
	keyInfo, keyErr := os.Stat(cw.tm.keyPath)
	if certErr != nil || keyErr != nil {
		return false
	}

	if !certInfo.ModTime().After(cw.lastCertMod) && !keyInfo.ModTime().After(cw.lastKeyMod) {
		return false
	}

	cw.tm.logger.Info("certificate files changed, reloading")
	if !cw.tm.validateCertDomain(cw.tm.certPath) {
		if err := cw.tm.initCertMagic(); err != nil {
			cw.tm.logger.Error("switch to CertMagic", zap.Error(err))
			return false
		}
		return true
	}

	if err := cw.tm.loadUserCerts(); err != nil {
		cw.tm.logger.Error("reload certificates", zap.Error(err))
		return false
	}

	cw.lastCertMod = certInfo.ModTime()
	cw.lastKeyMod = keyInfo.ModTime()
	return false
}

// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package tls

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/pkg/config"
)

// ACME directories.
const (
	LetsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"
	LetsEncryptStaging    = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

const (
	defaultChallengePort   = 80
	defaultRenewBeforeDays = 30
	renewalCheckInterval   = 24 * time.Hour

	userFile     = "user.json"
	resourceFile = "resource.json"
	certFile     = "certificate.pem"
	keyFile      = "key.pem"
)

// ErrNotDue is returned by a non-forced Renew of a certificate outside its
// renewal window.
var ErrNotDue = errors.New("certificate not due for renewal")

// LetsEncryptProvider obtains, caches and renews certificates over ACME.
type LetsEncryptProvider struct {
	config LetsEncryptConfig
	logger *zap.Logger

	client       *lego.Client
	mu           sync.RWMutex
	cert         *tls.Certificate
	x509Cert     *x509.Certificate
	certResource *certificate.Resource

	stopOnce sync.Once
	stopChan chan struct{}
}

// acmeUser implements registration.User.
type acmeUser struct {
	Email        string
	Registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string                        { return u.Email }
func (u *acmeUser) GetRegistration() *registration.Resource { return u.Registration }
func (u *acmeUser) GetPrivateKey() crypto.PrivateKey        { return u.key }

// savedUser is the on-disk form of an ACME account.
type savedUser struct {
	Email        string                 `json:"email"`
	Registration *registration.Resource `json:"registration"`
	PrivateKey   string                 `json:"private_key"`
}

// NewLetsEncryptProvider validates config and loads any cached certificate.
// No network traffic happens before Start.
func NewLetsEncryptProvider(cfg LetsEncryptConfig, logger *zap.Logger) (*LetsEncryptProvider, error) {
	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("at least one domain is required for Let's Encrypt")
	}
	if cfg.Email == "" {
		return nil, fmt.Errorf("email is required for Let's Encrypt")
	}
	if !cfg.AcceptTOS {
		return nil, fmt.Errorf("must accept Let's Encrypt Terms of Service (set accept_tos: true)")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.DirectoryURL == "" {
		cfg.DirectoryURL = LetsEncryptProduction
	}
	if cfg.HTTPChallengePort == 0 {
		cfg.HTTPChallengePort = defaultChallengePort
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = config.GetSubDir("certs")
	}
	if cfg.RenewBeforeDays == 0 {
		cfg.RenewBeforeDays = defaultRenewBeforeDays
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	p := &LetsEncryptProvider{
		config:   cfg,
		logger:   logger.With(zap.Strings("domains", cfg.Domains)),
		stopChan: make(chan struct{}),
	}
	if err := p.loadCachedCertificate(); err == nil {
		p.logger.Info("loaded cached certificate")
	} else {
		p.logger.Info("no cached certificate found, will obtain new certificate", zap.Error(err))
	}
	return p, nil
}

// Start obtains a certificate when none is cached and starts the daily
// renewal check.
func (p *LetsEncryptProvider) Start(ctx context.Context) error {
	p.mu.RLock()
	haveCert := p.cert != nil
	p.mu.RUnlock()

	if !haveCert {
		if err := p.obtainCertificate(); err != nil {
			return fmt.Errorf("failed to obtain initial certificate: %w", err)
		}
	}
	go p.renewalLoop(time.NewTicker(renewalCheckInterval))
	return nil
}

// Stop ends the renewal loop.
func (p *LetsEncryptProvider) Stop(context.Context) error {
	p.stopOnce.Do(func() { close(p.stopChan) })
	return nil
}

// GetCertificate returns the current certificate.
func (p *LetsEncryptProvider) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cert == nil {
		return nil, fmt.Errorf("no certificate available")
	}
	return p.cert, nil
}

// Status returns the current certificate status.
func (p *LetsEncryptProvider) Status(context.Context) (*Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := certStatus(ModeLetsEncrypt, "", p.x509Cert)
	s.AutoRenew = true
	return s, nil
}

// Renew renews the certificate. Without force it fails with ErrNotDue while
// the certificate is outside the renewal window.
func (p *LetsEncryptProvider) Renew(_ context.Context, force bool) error {
	if !force && !p.dueForRenewal() {
		return fmt.Errorf("%w: renew threshold is %d days", ErrNotDue, p.config.RenewBeforeDays)
	}
	return p.renewCertificate()
}

func (p *LetsEncryptProvider) dueForRenewal() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.x509Cert == nil {
		return true
	}
	return daysUntil(p.x509Cert.NotAfter) <= p.config.RenewBeforeDays
}

func (p *LetsEncryptProvider) obtainCertificate() error {
	if err := p.initACMEClient(); err != nil {
		return fmt.Errorf("failed to initialize ACME client: %w", err)
	}

	p.logger.Info("obtaining certificate", zap.String("directory", p.config.DirectoryURL))
	certResource, err := p.client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: p.config.Domains,
		Bundle:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to obtain certificate: %w", err)
	}
	if err := p.loadCertificateResource(certResource); err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	if err := p.cacheCertificate(certResource); err != nil {
		p.logger.Warn("failed to cache certificate", zap.Error(err))
	}

	p.logger.Info("obtained certificate")
	return nil
}

func (p *LetsEncryptProvider) renewCertificate() error {
	p.mu.RLock()
	certResource := p.certResource
	p.mu.RUnlock()

	if certResource == nil {
		return p.obtainCertificate()
	}
	if p.client == nil {
		if err := p.initACMEClient(); err != nil {
			return fmt.Errorf("failed to initialize ACME client: %w", err)
		}
	}

	p.logger.Info("renewing certificate")
	renewed, err := p.client.Certificate.RenewWithOptions(*certResource, &certificate.RenewOptions{Bundle: true})
	if err != nil {
		return fmt.Errorf("failed to renew certificate: %w", err)
	}
	if err := p.loadCertificateResource(renewed); err != nil {
		return fmt.Errorf("failed to load renewed certificate: %w", err)
	}
	if err := p.cacheCertificate(renewed); err != nil {
		p.logger.Warn("failed to cache renewed certificate", zap.Error(err))
	}

	p.logger.Info("renewed certificate")
	return nil
}

func (p *LetsEncryptProvider) initACMEClient() error {
	user, err := p.loadOrCreateUser()
	if err != nil {
		return fmt.Errorf("failed to load/create ACME user: %w", err)
	}

	cfg := lego.NewConfig(user)
	cfg.CADirURL = p.config.DirectoryURL
	cfg.Certificate.KeyType = certcrypto.RSA2048

	client, err := lego.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create ACME client: %w", err)
	}
	challenge := http01.NewProviderServer("", strconv.Itoa(p.config.HTTPChallengePort))
	if err := client.Challenge.SetHTTP01Provider(challenge); err != nil {
		return fmt.Errorf("failed to set HTTP-01 provider: %w", err)
	}

	p.client = client
	return nil
}

// loadOrCreateUser loads the cached ACME account or registers a new one.
func (p *LetsEncryptProvider) loadOrCreateUser() (*acmeUser, error) {
	userPath := filepath.Join(p.config.CacheDir, userFile)

	if user, err := readUser(userPath); err == nil {
		return user, nil
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	user := &acmeUser{Email: p.config.Email, key: privateKey}

	cfg := lego.NewConfig(user)
	cfg.CADirURL = p.config.DirectoryURL
	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for registration: %w", err)
	}
	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	user.Registration = reg

	if err := writeUser(userPath, user, privateKey); err != nil {
		p.logger.Warn("failed to save ACME account", zap.Error(err))
	}
	return user, nil
}

func readUser(path string) (*acmeUser, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var saved savedUser
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, err
	}
	block, _ := pem.Decode([]byte(saved.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("no private key in %s", path)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return &acmeUser{Email: saved.Email, Registration: saved.Registration, key: key}, nil
}

func writeUser(path string, user *acmeUser, key *ecdsa.PrivateKey) error {
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(savedUser{
		Email:        user.Email,
		Registration: user.Registration,
		PrivateKey:   string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (p *LetsEncryptProvider) loadCertificateResource(certResource *certificate.Resource) error {
	tlsCert, err := tls.X509KeyPair(certResource.Certificate, certResource.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	var x509Cert *x509.Certificate
	if len(tlsCert.Certificate) > 0 {
		x509Cert, err = x509.ParseCertificate(tlsCert.Certificate[0])
		if err != nil {
			return fmt.Errorf("failed to parse x509 certificate: %w", err)
		}
	}

	p.mu.Lock()
	p.cert = &tlsCert
	p.x509Cert = x509Cert
	p.certResource = certResource
	p.mu.Unlock()
	return nil
}

// cacheCertificate saves the resource metadata and its PEM files. The
// resource's JSON form omits the certificate and key bytes.
func (p *LetsEncryptProvider) cacheCertificate(certResource *certificate.Resource) error {
	if err := os.WriteFile(filepath.Join(p.config.CacheDir, certFile), certResource.Certificate, 0o600); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.config.CacheDir, keyFile), certResource.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	data, err := json.MarshalIndent(certResource, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode certificate resource: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.config.CacheDir, resourceFile), data, 0o600); err != nil {
		return fmt.Errorf("failed to write certificate resource: %w", err)
	}
	return nil
}

func (p *LetsEncryptProvider) loadCachedCertificate() error {
	data, err := os.ReadFile(filepath.Join(p.config.CacheDir, resourceFile))
	if err != nil {
		return fmt.Errorf("failed to read cached certificate: %w", err)
	}
	var certResource certificate.Resource
	if err := json.Unmarshal(data, &certResource); err != nil {
		return fmt.Errorf("failed to parse cached certificate: %w", err)
	}
	if certResource.Certificate, err = os.ReadFile(filepath.Join(p.config.CacheDir, certFile)); err != nil {
		return fmt.Errorf("failed to read cached certificate: %w", err)
	}
	if certResource.PrivateKey, err = os.ReadFile(filepath.Join(p.config.CacheDir, keyFile)); err != nil {
		return fmt.Errorf("failed to read cached key: %w", err)
	}
	return p.loadCertificateResource(&certResource)
}

func (p *LetsEncryptProvider) renewalLoop(ticker *time.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !p.dueForRenewal() {
				continue
			}
			p.logger.Info("certificate due for renewal", zap.Int("threshold_days", p.config.RenewBeforeDays))
			if err := p.renewCertificate(); err != nil {
				p.logger.Error("automatic renewal failed", zap.Error(err))
			}
		case <-p.stopChan:
			return
		}
	}
}

// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager serves certificates from one provider.
type Manager struct {
	config   Config
	provider Provider
}

// Provider is the interface for TLS certificate providers.
type Provider interface {
	// GetCertificate is called on every TLS handshake.
	GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error)

	// Start obtains the first certificate if needed and starts renewal.
	Start(ctx context.Context) error

	Stop(ctx context.Context) error

	Status(ctx context.Context) (*Status, error)

	// Renew replaces the certificate. Without force, a provider may refuse a
	// certificate that is not yet due.
	Renew(ctx context.Context, force bool) error
}

// NewManager creates a manager for config.Mode. It returns ErrDisabled when
// no mode is set.
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var provider Provider
	var err error
	switch config.Mode {
	case ModeNone:
		return nil, ErrDisabled
	case ModeLetsEncrypt:
		provider, err = NewLetsEncryptProvider(config.LetsEncrypt, logger)
	case ModeManual:
		provider, err = NewManualProvider(config.Manual)
	case ModeSelfSigned:
		provider, err = NewSelfSignedProvider(config.SelfSigned)
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s (must be %s, %s, or %s)", config.Mode, ModeLetsEncrypt, ModeManual, ModeSelfSigned)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS provider: %w", err)
	}

	return &Manager{config: config, provider: provider}, nil
}

// Start initializes the TLS manager and starts background tasks.
func (m *Manager) Start(ctx context.Context) error {
	return m.provider.Start(ctx)
}

// Stop gracefully shuts down the TLS manager.
func (m *Manager) Stop(ctx context.Context) error {
	return m.provider.Stop(ctx)
}

// TLSConfig returns the listener configuration. Manual mode with a client CA
// requires and verifies client certificates.
func (m *Manager) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		GetCertificate: m.provider.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		},
	}
	if m.config.Mode == ModeManual && m.config.Manual.ClientCAFile != "" {
		pool, err := loadCertPool(m.config.Manual.ClientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// Status returns the current TLS status.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	return m.provider.Status(ctx)
}

// Renew manually triggers certificate renewal.
func (m *Manager) Renew(ctx context.Context, force bool) error {
	return m.provider.Renew(ctx, force)
}

// certStatus fills the certificate fields of a Status.
func certStatus(mode, issuer string, cert *x509.Certificate) *Status {
	if cert == nil {
		return &Status{Mode: mode}
	}
	if issuer == "" {
		issuer = cert.Issuer.CommonName
	}
	return &Status{
		Mode:            mode,
		Domains:         cert.DNSNames,
		Issuer:          issuer,
		ExpiresAt:       cert.NotAfter,
		DaysUntilExpiry: daysUntil(cert.NotAfter),
		Valid:           time.Now().Before(cert.NotAfter),
	}
}

func daysUntil(t time.Time) int {
	return int(time.Until(t).Hours() / 24)
}

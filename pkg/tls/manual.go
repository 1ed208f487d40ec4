// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ManualProvider serves a certificate loaded from PEM files.
type ManualProvider struct {
	config ManualConfig

	mu       sync.RWMutex
	cert     *tls.Certificate
	x509Cert *x509.Certificate
}

// NewManualProvider loads config's key pair.
func NewManualProvider(config ManualConfig) (*ManualProvider, error) {
	if config.CertFile == "" || config.KeyFile == "" {
		return nil, fmt.Errorf("cert_file and key_file are required for manual TLS")
	}
	p := &ManualProvider{config: config}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ManualProvider) load() error {
	cert, err := tls.LoadX509KeyPair(p.config.CertFile, p.config.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}

	var x509Cert *x509.Certificate
	if len(cert.Certificate) > 0 {
		x509Cert, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return fmt.Errorf("failed to parse certificate: %w", err)
		}
	}

	p.mu.Lock()
	p.cert = &cert
	p.x509Cert = x509Cert
	p.mu.Unlock()
	return nil
}

// GetCertificate returns the loaded certificate.
func (p *ManualProvider) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cert, nil
}

func (p *ManualProvider) Start(context.Context) error { return nil }
func (p *ManualProvider) Stop(context.Context) error  { return nil }

// Status returns the current certificate status.
func (p *ManualProvider) Status(context.Context) (*Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return certStatus(ModeManual, "", p.x509Cert), nil
}

// Renew reloads the files, picking up certificates rotated on disk.
func (p *ManualProvider) Renew(context.Context, bool) error {
	return p.load()
}

// LoadCertificateFromFile parses the first certificate of a PEM file.
func LoadCertificateFromFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no PEM certificate in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in client CA file %s", path)
	}
	return pool, nil
}

// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"
)

// DefaultSelfSignedValidityDays is used when ValidityDays is zero.
const DefaultSelfSignedValidityDays = 365

// SelfSignedProvider generates and serves self-signed certificates for development.
type SelfSignedProvider struct {
	config SelfSignedConfig

	mu       sync.RWMutex
	cert     *tls.Certificate
	x509Cert *x509.Certificate
}

// NewSelfSignedProvider generates the first certificate.
func NewSelfSignedProvider(config SelfSignedConfig) (*SelfSignedProvider, error) {
	if config.ValidityDays < 0 {
		return nil, fmt.Errorf("validity_days must be positive, got %d", config.ValidityDays)
	}
	if config.ValidityDays == 0 {
		config.ValidityDays = DefaultSelfSignedValidityDays
	}
	if len(config.Hostnames) == 0 && len(config.IPAddresses) == 0 {
		config.Hostnames = []string{"localhost"}
		config.IPAddresses = []string{"127.0.0.1"}
	}
	if config.Organization == "" {
		config.Organization = "sibridge development"
	}

	p := &SelfSignedProvider{config: config}
	if err := p.Renew(context.Background(), true); err != nil {
		return nil, err
	}
	return p, nil
}

// GetCertificate returns the self-signed certificate.
func (p *SelfSignedProvider) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cert, nil
}

func (p *SelfSignedProvider) Start(context.Context) error { return nil }
func (p *SelfSignedProvider) Stop(context.Context) error  { return nil }

// Status returns the current certificate status.
func (p *SelfSignedProvider) Status(context.Context) (*Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return certStatus(ModeSelfSigned, "Self-Signed", p.x509Cert), nil
}

// Renew generates a fresh key pair.
func (p *SelfSignedProvider) Renew(context.Context, bool) error {
	cert, x509Cert, err := generateSelfSignedCertificate(p.config)
	if err != nil {
		return fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	p.mu.Lock()
	p.cert = cert
	p.x509Cert = x509Cert
	p.mu.Unlock()
	return nil
}

func generateSelfSignedCertificate(config SelfSignedConfig) (*tls.Certificate, *x509.Certificate, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	commonName := "localhost"
	if len(config.Hostnames) > 0 {
		commonName = config.Hostnames[0]
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{config.Organization},
			CommonName:   commonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(time.Duration(config.ValidityDays) * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              append([]string(nil), config.Hostnames...),
	}
	for _, ipStr := range config.IPAddresses {
		if ip := net.ParseIP(ipStr); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	x509Cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	tlsCert, err := tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create X509 key pair: %w", err)
	}
	return &tlsCert, x509Cert, nil
}

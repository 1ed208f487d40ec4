// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package tls provides certificates for the HTTPS listener: files on disk,
// a generated self-signed pair, or Let's Encrypt over ACME HTTP-01.
package tls

import (
	"errors"
	"time"
)

// Certificate sources.
const (
	ModeNone        = ""
	ModeManual      = "manual"
	ModeSelfSigned  = "self-signed"
	ModeLetsEncrypt = "letsencrypt"
)

// ErrDisabled is returned by NewManager when no mode is configured.
var ErrDisabled = errors.New("TLS not enabled")

// Config selects and configures the certificate source.
type Config struct {
	Mode        string            `mapstructure:"mode"`
	Manual      ManualConfig      `mapstructure:"manual"`
	SelfSigned  SelfSignedConfig  `mapstructure:"self_signed"`
	LetsEncrypt LetsEncryptConfig `mapstructure:"letsencrypt"`
}

// Enabled reports whether a certificate source is configured.
func (c Config) Enabled() bool { return c.Mode != ModeNone }

// ManualConfig names PEM files. ClientCAFile enables client certificate
// verification.
type ManualConfig struct {
	CertFile     string `mapstructure:"cert_file"`
	KeyFile      string `mapstructure:"key_file"`
	ClientCAFile string `mapstructure:"client_ca_file"`
}

// SelfSignedConfig describes the generated development certificate.
type SelfSignedConfig struct {
	Hostnames    []string `mapstructure:"hostnames"`
	IPAddresses  []string `mapstructure:"ip_addresses"`
	ValidityDays int      `mapstructure:"validity_days"`
	Organization string   `mapstructure:"organization"`
}

// LetsEncryptConfig configures ACME issuance and renewal.
type LetsEncryptConfig struct {
	Domains           []string `mapstructure:"domains"`
	Email             string   `mapstructure:"email"`
	AcceptTOS         bool     `mapstructure:"accept_tos"`
	DirectoryURL      string   `mapstructure:"directory_url"`
	HTTPChallengePort int      `mapstructure:"http_challenge_port"`
	CacheDir          string   `mapstructure:"cache_dir"`
	RenewBeforeDays   int      `mapstructure:"renew_before_days"`
}

// Status describes the certificate currently served.
type Status struct {
	Mode            string    `json:"mode"`
	Domains         []string  `json:"domains,omitempty"`
	Issuer          string    `json:"issuer,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	Valid           bool      `json:"valid"`
	AutoRenew       bool      `json:"auto_renew"`
}

// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package tls

import (
	"context"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfSignedProvider_Defaults(t *testing.T) {
	p, err := NewSelfSignedProvider(SelfSignedConfig{})
	require.NoError(t, err)

	status, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeSelfSigned, status.Mode)
	assert.Equal(t, "Self-Signed", status.Issuer)
	assert.Equal(t, []string{"localhost"}, status.Domains)
	assert.True(t, status.Valid)
	assert.InDelta(t, DefaultSelfSignedValidityDays, status.DaysUntilExpiry, 1)

	cert, err := p.GetCertificate(nil)
	require.NoError(t, err)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", parsed.IPAddresses[0].String())
	assert.Equal(t, []string{"sibridge development"}, parsed.Subject.Organization)
}

func TestSelfSignedProvider_Custom(t *testing.T) {
	p, err := NewSelfSignedProvider(SelfSignedConfig{
		Hostnames:    []string{"bridge.internal", "localhost"},
		IPAddresses:  []string{"10.0.0.1", "not-an-ip"},
		ValidityDays: 7,
		Organization: "Analytics",
	})
	require.NoError(t, err)

	cert, _ := p.GetCertificate(nil)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "bridge.internal", parsed.Subject.CommonName)
	assert.Equal(t, []string{"bridge.internal", "localhost"}, parsed.DNSNames)
	require.Len(t, parsed.IPAddresses, 1)
	assert.Equal(t, "10.0.0.1", parsed.IPAddresses[0].String())
}

func TestSelfSignedProvider_Renew(t *testing.T) {
	p, err := NewSelfSignedProvider(SelfSignedConfig{ValidityDays: 1})
	require.NoError(t, err)
	before, _ := p.GetCertificate(nil)

	require.NoError(t, p.Renew(context.Background(), false))
	after, _ := p.GetCertificate(nil)
	assert.NotEqual(t, before.Certificate[0], after.Certificate[0])
}

func TestSelfSignedProvider_InvalidValidity(t *testing.T) {
	_, err := NewSelfSignedProvider(SelfSignedConfig{ValidityDays: -1})
	assert.Error(t, err)
}

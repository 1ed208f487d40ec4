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
package fabric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringKey(t *testing.T) {
	tests := []struct {
		dsn     string
		wantKey string
		wantOK  bool
	}{
		{"keyring", "warehouse", true},
		{"keyring:prod-dsn", "prod-dsn", true},
		{"keyring:", "", false},
		{"postgres://localhost/db", "", false},
		{"keyrings.db", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			key, ok := KeyringKey(SourceConfig{Name: "warehouse", DSN: tt.dsn})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestResolveSecret(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, SaveSecret("warehouse", "postgres://user:pw@db/warehouse"))

	src, err := ResolveSecret(SourceConfig{Name: "warehouse", Type: "postgres", DSN: "keyring"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://user:pw@db/warehouse", src.DSN)

	plain := SourceConfig{Name: "local", Type: "sqlite", DSN: "local.db"}
	src, err = ResolveSecret(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, src)

	_, err = ResolveSecret(SourceConfig{Name: "x", Type: "postgres", DSN: "keyring:absent"})
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Contains(t, err.Error(), "set-secret absent")
}

func TestSaveAndDeleteSecret(t *testing.T) {
	keyring.MockInit()

	require.Error(t, SaveSecret("", "dsn"))
	require.Error(t, SaveSecret("key", ""))

	require.NoError(t, SaveSecret("key", "dsn"))
	require.NoError(t, DeleteSecret("key"))
	assert.ErrorIs(t, DeleteSecret("key"), ErrSecretNotFound)
}

func TestCatalog_ResolvesKeyringDSN(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, SaveSecret("sales-dsn", "sales.db"))

	catalog, err := NewCatalogWithRegistry(NewRegistry(), []SourceConfig{
		{Name: "sales", Type: "sqlite", DSN: "keyring:sales-dsn"},
	}, nil)
	require.NoError(t, err)
	src, err := catalog.Resolve("sales")
	require.NoError(t, err)
	assert.Equal(t, "sales.db", src.DSN)

	_, err = NewCatalogWithRegistry(NewRegistry(), []SourceConfig{
		{Name: "other", Type: "sqlite", DSN: "keyring"},
	}, nil)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

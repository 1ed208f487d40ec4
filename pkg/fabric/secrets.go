// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fabric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the system keyring service DSN secrets are stored under.
const KeyringService = "sibridge"

// keyringScheme marks a DSN kept in the system keyring. "keyring" alone uses
// the source name as the key; "keyring:<key>" names the key explicitly.
const keyringScheme = "keyring"

// ErrSecretNotFound is returned when a keyring DSN has no stored secret.
var ErrSecretNotFound = errors.New("secret not found in keyring")

// KeyringKey returns the keyring key of a source whose DSN lives in the
// keyring, and false for ordinary DSNs.
func KeyringKey(src SourceConfig) (string, bool) {
	switch {
	case src.DSN == keyringScheme:
		return src.Name, true
	case strings.HasPrefix(src.DSN, keyringScheme+":"):
		key := strings.TrimPrefix(src.DSN, keyringScheme+":")
		return key, key != ""
	default:
		return "", false
	}
}

// ResolveSecret replaces a keyring DSN with the stored secret.
func ResolveSecret(src SourceConfig) (SourceConfig, error) {
	key, ok := KeyringKey(src)
	if !ok {
		return src, nil
	}
	dsn, err := keyring.Get(KeyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return src, fmt.Errorf("%w: %s (set it with: sibridge sources set-secret %s)", ErrSecretNotFound, key, key)
	}
	if err != nil {
		return src, fmt.Errorf("failed to read keyring secret %s: %w", key, err)
	}
	src.DSN = dsn
	return src, nil
}

// SaveSecret stores dsn in the system keyring under key.
func SaveSecret(key, dsn string) error {
	if key == "" || dsn == "" {
		return fmt.Errorf("key and dsn are required")
	}
	return keyring.Set(KeyringService, key, dsn)
}

// DeleteSecret removes key from the system keyring.
func DeleteSecret(key string) error {
	if err := keyring.Delete(KeyringService, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return err
	}
	return nil
}

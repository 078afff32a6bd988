/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService      = "ComicLayers"
	keyringBackendToken = "backend_token"
	keyringHFToken      = "huggingface_token"
)

// Environment variables that carry the inference token, in lookup order.
const (
	EnvHFToken       = "CL_HF_TOKEN"
	EnvHFTokenLegacy = "HUGGINGFACE_API_KEY"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error {
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// TokenSource tells where a resolved token came from.
type TokenSource string

const (
	SourceNone    TokenSource = "none"
	SourceEnv     TokenSource = "env"
	SourceKeyring TokenSource = "keyring"
)

// ResolveHFToken finds the inference token. An environment value wins; the
// user-entered value from the keyring is used when the environment has none.
func ResolveHFToken() (string, TokenSource) {
	for _, name := range []string{EnvHFToken, EnvHFTokenLegacy} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, SourceEnv
		}
	}
	if v, err := tokenStore.Get(keyringService, keyringHFToken); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), SourceKeyring
	}
	return "", SourceNone
}

// StoreHFToken saves a user-entered inference token in the keyring; an empty
// value removes it. The process-wide default is updated as well.
func StoreHFToken(token string) error {
	token = strings.TrimSpace(token)
	var err error
	if token == "" {
		err = tokenStore.Delete(keyringService, keyringHFToken)
	} else {
		err = tokenStore.Set(keyringService, keyringHFToken, token)
	}
	if err != nil {
		return err
	}
	SetDefaultToken(token)
	return nil
}

// The process-wide default token, read at the CLI boundary and handed to the
// generation client explicitly. A change racing an in-flight request may be
// seen by either side.
var defaultToken struct {
	mu    sync.RWMutex
	value string
	set   bool
}

// DefaultToken returns the process-wide inference token, resolving it on first use.
func DefaultToken() string {
	defaultToken.mu.RLock()
	if defaultToken.set {
		v := defaultToken.value
		defaultToken.mu.RUnlock()
		return v
	}
	defaultToken.mu.RUnlock()

	v, _ := ResolveHFToken()
	defaultToken.mu.Lock()
	defer defaultToken.mu.Unlock()
	if !defaultToken.set {
		defaultToken.value, defaultToken.set = v, true
	}
	return defaultToken.value
}

// SetDefaultToken replaces the process-wide inference token.
func SetDefaultToken(token string) {
	defaultToken.mu.Lock()
	defaultToken.value, defaultToken.set = strings.TrimSpace(token), true
	defaultToken.mu.Unlock()
}

// resetDefaultToken forgets the cached value so the next DefaultToken resolves again.
func resetDefaultToken() {
	defaultToken.mu.Lock()
	defaultToken.value, defaultToken.set = "", false
	defaultToken.mu.Unlock()
}

// StoreBackendToken saves the gallery token in the keyring without touching
// the config file; an empty value removes it.
func StoreBackendToken(token string) error {
	if token == "" {
		return tokenStore.Delete(keyringService, keyringBackendToken)
	}
	return tokenStore.Set(keyringService, keyringBackendToken, token)
}

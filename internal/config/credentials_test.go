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
	"sync"
	"testing"
)

func TestResolveHFTokenPrecedence(t *testing.T) {
	isolate(t)
	if tok, src := ResolveHFToken(); tok != "" || src != SourceNone {
		t.Fatalf("empty = %q/%s", tok, src)
	}
	if err := StoreHFToken("hf_keyring"); err != nil {
		t.Fatalf("StoreHFToken: %v", err)
	}
	if tok, src := ResolveHFToken(); tok != "hf_keyring" || src != SourceKeyring {
		t.Fatalf("keyring = %q/%s", tok, src)
	}
	t.Setenv(EnvHFTokenLegacy, "hf_legacy")
	if tok, src := ResolveHFToken(); tok != "hf_legacy" || src != SourceEnv {
		t.Fatalf("legacy env = %q/%s", tok, src)
	}
	t.Setenv(EnvHFToken, " hf_env ")
	if tok, src := ResolveHFToken(); tok != "hf_env" || src != SourceEnv {
		t.Fatalf("env = %q/%s", tok, src)
	}
}

func TestStoreHFTokenEmptyDeletes(t *testing.T) {
	isolate(t)
	if err := StoreHFToken("hf_x"); err != nil {
		t.Fatal(err)
	}
	if err := StoreHFToken("  "); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if tok, _ := ResolveHFToken(); tok != "" {
		t.Fatalf("token survived delete: %q", tok)
	}
	if DefaultToken() != "" {
		t.Fatalf("default token not cleared")
	}
	// deleting again is not an error
	if err := StoreHFToken(""); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

type failingStore struct{}

func (failingStore) Get(string, string) (string, error) { return "", errors.New("locked") }
func (failingStore) Set(string, string, string) error   { return errors.New("locked") }
func (failingStore) Delete(string, string) error        { return errors.New("locked") }

func TestKeyringFailureFallsBackToNone(t *testing.T) {
	isolate(t)
	old := tokenStore
	tokenStore = failingStore{}
	t.Cleanup(func() { tokenStore = old })
	if tok, src := ResolveHFToken(); tok != "" || src != SourceNone {
		t.Fatalf("got %q/%s", tok, src)
	}
	if err := StoreHFToken("x"); err == nil {
		t.Fatalf("expected keyring error")
	}
}

func TestDefaultTokenConcurrentAccess(t *testing.T) {
	isolate(t)
	t.Setenv(EnvHFToken, "hf_first")
	if got := DefaultToken(); got != "hf_first" {
		t.Fatalf("DefaultToken = %q", got)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = DefaultToken() }()
		go func() { defer wg.Done(); SetDefaultToken("hf_second") }()
	}
	wg.Wait()
	if got := DefaultToken(); got != "hf_second" {
		t.Fatalf("DefaultToken after set = %q", got)
	}
}

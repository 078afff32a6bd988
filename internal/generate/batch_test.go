/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package generate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"math"
	"testing"

	"comiclayers/internal/domain"
	applog "comiclayers/internal/log"
)

func TestGenerateBatchPerItemResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if strings.Contains(string(b), "forbidden thing") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		image(w)
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, Logger: applog.Discard()})

	reqs := []ElementRequest{
		{Description: "a knight", Type: domain.Character},
		{Description: "forbidden thing", Type: domain.Prop},
		{Description: "a castle", Type: domain.Background},
	}
	res := c.GenerateBatch(context.Background(), creds, reqs, 2)
	if len(res) != 3 {
		t.Fatalf("results = %d", len(res))
	}
	if res[0].Err != nil || res[2].Err != nil {
		t.Fatalf("siblings failed: %v / %v", res[0].Err, res[2].Err)
	}
	if !errors.Is(res[1].Err, ErrInvalidCredential) {
		t.Fatalf("item 1 err = %v", res[1].Err)
	}
	if res[2].Request.Description != "a castle" || res[2].Asset.DataURI == "" {
		t.Fatalf("results out of order: %+v", res[2])
	}
}

func TestNewElementFromAsset(t *testing.T) {
	a := toAsset("k", pngBytes, "")
	e := NewElement(a, ElementRequest{Description: " a knight ", Type: domain.Character})
	if !strings.HasPrefix(e.ID, "element-") || e.Name != "a knight" || e.ImageURL != a.DataURI {
		t.Fatalf("unexpected element: %+v", e)
	}
	if e.Size.Width != 200 || e.Size.Height != 200 || e.Opacity != 1 || e.Rotation != 0 {
		t.Fatalf("unexpected defaults: %+v", e)
	}
}

func TestToAssetMIMEFallback(t *testing.T) {
	if a := toAsset("k", []byte("plain bytes"), ""); a.MIMEType != "image/jpeg" {
		t.Fatalf("fallback = %q", a.MIMEType)
	}
	if a := toAsset("k", []byte("plain bytes"), "image/webp; q=1"); a.MIMEType != "image/webp" {
		t.Fatalf("header fallback = %q", a.MIMEType)
	}
}

func TestDefaultsAndSeed(t *testing.T) {
	r := ElementRequest{Description: "a knight"}.withDefaults()
	if r.Options.Model != StableDiffusion || r.Type != domain.Character || r.Options.Width != 512 {
		t.Fatalf("defaults = %+v", r)
	}
	if r.Options.Seed <= 0 || r.Options.Seed > math.MaxInt32 {
		t.Fatalf("seed = %d", r.Options.Seed)
	}
	fixed := ElementRequest{Description: "a knight", Options: Options{Seed: 42}}.withDefaults()
	if fixed.Options.Seed != 42 {
		t.Fatalf("explicit seed replaced: %d", fixed.Options.Seed)
	}
	if m, err := ParseModel("kandinsky"); err != nil || m.Repo() != "kandinsky-community/kandinsky-2-2" {
		t.Fatalf("ParseModel = %v, %v", m, err)
	}
	if _, err := ParseModel("dalle"); err == nil {
		t.Fatalf("expected error")
	}
}

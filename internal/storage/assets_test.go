/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"comiclayers/internal/domain"
	"comiclayers/internal/generate"
	applog "comiclayers/internal/log"
)

func TestAssetCachePutGetPrune(t *testing.T) {
	ac, err := OpenAssetCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenAssetCache: %v", err)
	}
	defer ac.Close()
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	ac.now = func() time.Time { return now }

	if _, ok, err := ac.GetAsset(ctx, "missing"); ok || err != nil {
		t.Fatalf("miss = %v, %v", ok, err)
	}
	in := generate.Asset{DataURI: "data:image/png;base64,AAAA", MIMEType: "image/png", Size: 3}
	if err := ac.PutAsset(ctx, "k1", in); err != nil {
		t.Fatalf("PutAsset: %v", err)
	}
	got, ok, err := ac.GetAsset(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("GetAsset: %v %v", ok, err)
	}
	if got.Key != "k1" || got.DataURI != in.DataURI || got.MIMEType != "image/png" || got.Size != 3 {
		t.Fatalf("asset = %+v", got)
	}
	// overwrite keeps one row
	in.Size = 4
	if err := ac.PutAsset(ctx, "k1", in); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)
	if err := ac.PutAsset(ctx, "k2", in); err != nil {
		t.Fatal(err)
	}
	n, err := ac.Prune(ctx, now.Add(-time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	if _, ok, _ := ac.GetAsset(ctx, "k2"); !ok {
		t.Fatalf("fresh asset pruned")
	}
}

func TestAssetCacheServesGenerationAcrossClients(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	root := t.TempDir()
	req := generate.ElementRequest{Description: "a knight", Type: domain.Character, Options: generate.Options{Seed: 7}}
	creds := generate.Credentials{Token: "hf_test"}
	for i := 0; i < 2; i++ {
		ac, err := OpenAssetCache(root)
		if err != nil {
			t.Fatal(err)
		}
		// a fresh client has an empty in-memory cache; the second run must hit SQLite
		c := generate.New(generate.Config{BaseURL: srv.URL, Store: ac, Logger: applog.Discard()})
		a, err := c.GenerateElement(context.Background(), creds, req)
		_ = ac.Close()
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if a.MIMEType != "image/png" || a.Cached != (i == 1) {
			t.Fatalf("run %d asset = %+v", i, a)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("upstream calls = %d", calls.Load())
	}
}

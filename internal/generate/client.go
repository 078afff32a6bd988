/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package generate talks to the hosted inference service. It turns a text
// description into a self-contained image asset and hides the upstream's
// flakiness behind a bounded retry on resource exhaustion.
package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	applog "comiclayers/internal/log"
)

const (
	DefaultBaseURL       = "https://api-inference.huggingface.co/models"
	MaxAttempts          = 3
	DefaultBackoff       = 2 * time.Second
	DefaultImageTimeout  = 30 * time.Second
	DefaultScriptTimeout = 15 * time.Second
	DefaultCacheTTL      = 30 * time.Minute

	imageInstance  = "/generate-element"
	scriptInstance = "/generate-script"

	DefaultMaxResponseBytes = 32 << 20
)

// Credentials are passed with every call; the client keeps no token of its own.
type Credentials struct {
	Token string
}

// Asset is a generated image as a self-contained data URI.
type Asset struct {
	Key      string
	DataURI  string
	MIMEType string
	Size     int
	Cached   bool
}

// AssetStore persists assets across runs. Lookups that fail are treated as misses.
type AssetStore interface {
	GetAsset(ctx context.Context, key string) (Asset, bool, error)
	PutAsset(ctx context.Context, key string, a Asset) error
}

// EventSink receives anonymous outcome events (no prompt text).
type EventSink interface {
	Event(name string, props map[string]any)
}

// Config configures a Client. Zero values select the defaults above.
type Config struct {
	BaseURL       string
	Backoff       time.Duration
	MaxAttempts   int
	ImageTimeout  time.Duration
	ScriptTimeout time.Duration
	// RatePerMinute caps upstream attempts; 0 disables the limiter.
	RatePerMinute int
	// CacheTTL for the in-memory asset cache; negative disables it.
	CacheTTL time.Duration
	// MaxResponseBytes caps an upstream payload; larger ones fail.
	MaxResponseBytes int64

	Store      AssetStore
	Events     EventSink
	Logger     *slog.Logger
	HTTPClient *http.Client
	Classifier Classifier
	// NewTimer returns the timer used for backoff waits; nil uses a real timer.
	NewTimer func() backoff.Timer
}

// Client issues generation requests. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache
	group   singleflight.Group
	log     *slog.Logger

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of one shared upstream fetch. It outlives any single
// caller and is cancelled only once every waiter has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New builds a client from cfg.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = MaxAttempts
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = DefaultImageTimeout
	}
	if cfg.ScriptTimeout <= 0 {
		cfg.ScriptTimeout = DefaultScriptTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.Classifier == nil {
		cfg.Classifier = Classify
	}
	c := &Client{cfg: cfg, http: cfg.HTTPClient, log: cfg.Logger, flights: map[string]*flight{}}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = applog.WithComponent("generate")
	}
	if cfg.RatePerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 2)
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return c
}

type fetchResult struct {
	asset    Asset
	attempts int
}

// GenerateElement produces one image asset. It fails fast without a
// credential, retries only on resource exhaustion, and returns a *Error for
// every failure.
//
// Only requests with an explicit seed are reproducible, so only those are
// served from and written to the asset cache. Identical concurrent requests
// share one upstream fetch; a caller that gives up does not fail the others.
func (c *Client) GenerateElement(ctx context.Context, creds Credentials, req ElementRequest) (Asset, error) {
	l := applog.WithOperation(c.log, "generate_element")
	if strings.TrimSpace(creds.Token) == "" {
		err := newError(MissingCredential, imageInstance, 0, "", nil)
		c.emitFailure(err)
		return Asset{}, err
	}
	seeded := req.Options.Seed != 0
	req = req.withDefaults()
	body := req.body()
	key := fingerprint(req.Options.Model, body)
	l = l.With(slog.String("model", string(req.Options.Model)), slog.String("type", string(req.Type)), slog.String("key", key[:12]))

	if seeded {
		if a, ok := c.lookup(ctx, key); ok {
			l.DebugContext(ctx, "asset cache hit")
			c.emit("generation_succeeded", map[string]any{"model": string(req.Options.Model), "type": string(req.Type), "cached": true})
			return a, nil
		}
	}

	f := c.join(ctx, key)
	// keyed per flight so a caller never joins a fetch that is being abandoned
	ch := c.group.DoChan(fmt.Sprintf("%s#%p", key, f), func() (any, error) {
		res, err := c.fetchWithRetry(f.ctx, l, creds, req.Options.Model, body, key)
		if err == nil && seeded {
			c.remember(f.ctx, key, res.asset)
		}
		return res, err
	})
	var (
		v      any
		err    error
		shared bool
	)
	select {
	case r := <-ch:
		c.leave(key, f)
		v, err, shared = r.Val, r.Err, r.Shared
	case <-ctx.Done():
		c.leave(key, f)
		err = newError(classifyTransport(ctx.Err()), imageInstance, 0, "", ctx.Err())
	}
	if err != nil {
		var ge *Error
		if !errors.As(err, &ge) {
			ge = newError(GenerationFailed, imageInstance, 0, "", err)
		}
		l.Error("generation failed", slog.String("kind", ge.Kind.String()), slog.Any("err", ge))
		c.emitFailure(ge)
		return Asset{}, ge
	}
	res := v.(fetchResult)
	l.InfoContext(ctx, "element generated", slog.Int("attempts", res.attempts), slog.Int("bytes", res.asset.Size), slog.Bool("shared", shared))
	c.emit("generation_succeeded", map[string]any{"model": string(req.Options.Model), "type": string(req.Type), "attempts": res.attempts, "cached": false})
	return res.asset, nil
}

// join registers the caller as a waiter on the shared fetch for key.
func (c *Client) join(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter. The last one out cancels the fetch if it is still
// running and forgets the flight.
func (c *Client) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	f.cancel()
}

func (c *Client) fetchWithRetry(ctx context.Context, l *slog.Logger, creds Credentials, model Model, body imageBody, key string) (fetchResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return fetchResult{}, newError(GenerationFailed, imageInstance, 0, "", err)
	}
	url := c.cfg.BaseURL + "/" + model.Repo()

	attempts := 0
	op := func() (Asset, error) {
		attempts++
		l.Debug("attempt", slog.Int("attempt", attempts))
		if err := c.wait(ctx); err != nil {
			return Asset{}, backoff.Permanent(newError(classifyTransport(err), imageInstance, 0, "", err))
		}
		data, ctype, err := c.post(ctx, url, creds.Token, payload, c.cfg.ImageTimeout, imageInstance)
		if err != nil {
			var ge *Error
			if errors.As(err, &ge) && ge.Kind == ResourceExhausted {
				return Asset{}, err
			}
			return Asset{}, backoff.Permanent(err)
		}
		if len(data) == 0 {
			e := newError(GenerationFailed, imageInstance, http.StatusInternalServerError, "The image generation service did not return any data.", nil)
			e.Title = "No Data Received"
			return Asset{}, backoff.Permanent(e)
		}
		return toAsset(key, data, ctype), nil
	}
	notify := func(err error, d time.Duration) {
		l.Warn("upstream out of resources, retrying", slog.Int("attempt", attempts), slog.Duration("backoff", d))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.Backoff), uint64(c.cfg.MaxAttempts-1)), ctx)
	var timer backoff.Timer
	if c.cfg.NewTimer != nil {
		timer = c.cfg.NewTimer()
	}
	asset, err := backoff.RetryNotifyWithTimerAndData(op, policy, notify, timer)
	if err != nil {
		var ge *Error
		if errors.As(err, &ge) {
			if ge.Kind == ResourceExhausted {
				return fetchResult{attempts: attempts}, newError(ServiceUnavailable, imageInstance, 0,
					fmt.Sprintf("The generation service ran out of resources on all %d attempts. Please try again later.", attempts), err)
			}
			return fetchResult{attempts: attempts}, ge
		}
		// cancelled while backing off
		return fetchResult{attempts: attempts}, newError(classifyTransport(err), imageInstance, 0, "", err)
	}
	return fetchResult{asset: asset, attempts: attempts}, nil
}

// post performs one round trip. Non-2xx responses come back as *Error with
// the Kind chosen by the configured Classifier.
func (c *Client) post(ctx context.Context, url, token string, payload []byte, timeout time.Duration, instance string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, "", newError(GenerationFailed, instance, 0, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", newError(classifyTransport(err), instance, 0, "", err)
	}
	defer resp.Body.Close()
	limit := c.cfg.MaxResponseBytes
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", newError(classifyTransport(err), instance, 0, "", err)
	}
	if int64(len(body)) > limit {
		return nil, "", newError(GenerationFailed, instance, 0,
			fmt.Sprintf("The upstream response exceeded %d bytes.", limit), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		k := c.cfg.Classifier(resp.StatusCode, body)
		detail := ""
		if k == GenerationFailed {
			detail = upstreamDetail(body)
		}
		return nil, "", newError(k, instance, resp.StatusCode, detail, nil)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) lookup(ctx context.Context, key string) (Asset, bool) {
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			a := v.(Asset)
			a.Cached = true
			return a, true
		}
	}
	if c.cfg.Store != nil {
		a, ok, err := c.cfg.Store.GetAsset(ctx, key)
		if err != nil {
			c.log.Warn("asset store lookup failed", slog.Any("err", err))
			return Asset{}, false
		}
		if ok {
			if c.cache != nil {
				c.cache.Set(key, a, cache.DefaultExpiration)
			}
			a.Cached = true
			return a, true
		}
	}
	return Asset{}, false
}

func (c *Client) remember(ctx context.Context, key string, a Asset) {
	if c.cache != nil {
		c.cache.Set(key, a, cache.DefaultExpiration)
	}
	if c.cfg.Store != nil {
		if err := c.cfg.Store.PutAsset(ctx, key, a); err != nil {
			c.log.Warn("asset store write failed", slog.Any("err", err))
		}
	}
}

func (c *Client) emit(name string, props map[string]any) {
	if c.cfg.Events != nil {
		c.cfg.Events.Event(name, props)
	}
}

func (c *Client) emitFailure(e *Error) {
	c.emit("generation_failed", map[string]any{"kind": e.Kind.String(), "status": e.Status})
}

// toAsset wraps raw image bytes in a data URI. The type is sniffed from the
// payload; the header is a fallback and image/jpeg the last resort.
func toAsset(key string, data []byte, contentType string) Asset {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
		if ct := strings.TrimSpace(strings.Split(contentType, ";")[0]); strings.HasPrefix(ct, "image/") {
			mime = ct
		}
	}
	return Asset{
		Key:      key,
		DataURI:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
		MIMEType: mime,
		Size:     len(data),
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"comiclayers/internal/comic"
	"comiclayers/internal/config"
	"comiclayers/internal/domain"
)

// Client is a small HTTP client for the gallery API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new gallery client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientFromConfig applies the configured timeout and TLS policy.
func NewClientFromConfig(cfg config.BackendConfig, token string) *Client {
	c := NewClient(cfg.BaseURL, token)
	c.client.Timeout = cfg.EffectiveTimeout()
	if cfg.TLSInsecure {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
		c.client.Transport = tr
	}
	return c
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, strings.TrimSpace(e.Body))
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, dest any) error {
	ct := ""
	if body != nil {
		ct = "application/json"
	}
	resp, err := c.do(ctx, method, path, ct, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

// IssueToken asks the gallery for a bearer token and stores it on the client.
func (c *Client) IssueToken(ctx context.Context, subject string) (string, time.Time, error) {
	body, _ := json.Marshal(map[string]any{"subject": subject})
	var env struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", body, &env); err != nil {
		return "", time.Time{}, err
	}
	c.Token = env.Token
	return env.Token, env.ExpiresAt, nil
}

// ListComics returns published comics, newest first. query filters by words
// in titles and panel text.
func (c *Client) ListComics(ctx context.Context, query string) ([]ComicSummary, error) {
	path := "/api/comics"
	if strings.TrimSpace(query) != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var list []ComicSummary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetComic downloads and validates a published comic.
func (c *Client) GetComic(ctx context.Context, id string) (domain.Comic, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/comics/"+url.PathEscape(id), "", nil)
	if err != nil {
		return domain.Comic{}, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxComicBytes))
	if err != nil {
		return domain.Comic{}, err
	}
	return comic.Deserialize(b)
}

// PublishComic uploads the serialized comic. Publishing the same id again
// bumps its version.
func (c *Client) PublishComic(ctx context.Context, cm domain.Comic) (ComicSummary, error) {
	b, err := comic.Serialize(cm)
	if err != nil {
		return ComicSummary{}, err
	}
	var sum ComicSummary
	if err := c.doJSON(ctx, http.MethodPost, "/api/comics", b, &sum); err != nil {
		return ComicSummary{}, err
	}
	return sum, nil
}

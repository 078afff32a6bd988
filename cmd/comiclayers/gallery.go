/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"comiclayers/internal/backend"
	"comiclayers/internal/config"
	"comiclayers/internal/domain"
	"comiclayers/internal/storage"
)

func (a *app) cmdToken(args []string) error {
	if len(args) < 1 {
		return usagef("token requires set|clear|status")
	}
	switch args[0] {
	case "set":
		if len(args) < 2 || args[1] == "" {
			return usagef("token set requires <value>")
		}
		if err := config.StoreHFToken(args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Inference token stored in the system keychain")
	case "clear":
		if err := config.StoreHFToken(""); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Inference token removed from the system keychain")
	case "status":
		_, src := config.ResolveHFToken()
		switch src {
		case config.SourceEnv:
			fmt.Fprintln(a.out, "Inference token: from environment")
		case config.SourceKeyring:
			fmt.Fprintln(a.out, "Inference token: from system keychain")
		default:
			fmt.Fprintln(a.out, "Inference token: not configured")
		}
	default:
		return usagef("unknown token command %q", args[0])
	}
	return nil
}

func (a *app) cmdServe(ctx context.Context, args []string) error {
	cfg := backend.LoadConfig()
	fs := newFlagSet("serve", a.out)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.BoolVar(&cfg.Memory, "memory", false, "keep comics in memory instead of Postgres")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	return backend.Run(ctx, cfg)
}

// withGallery calls fn with a gallery client. A missing or rejected token is
// replaced by a freshly issued one, stored in the keychain, and fn is retried once.
func (a *app) withGallery(ctx context.Context, fn func(*backend.Client) error) error {
	cl := backend.NewClientFromConfig(a.cfg.Backend, a.backendToken)
	if cl.Token != "" {
		err := fn(cl)
		var se *backend.StatusError
		if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
			return err
		}
		a.log.Info("gallery token rejected; requesting a new one")
	}
	tok, exp, err := cl.IssueToken(ctx, os.Getenv("USER"))
	if err != nil {
		return fmt.Errorf("request gallery token: %w", err)
	}
	a.backendToken = tok
	if err := config.StoreBackendToken(tok); err != nil {
		a.log.Warn("could not persist gallery token", slog.Any("err", err))
	}
	a.log.Info("gallery token issued", slog.Time("expires", exp))
	return fn(cl)
}

func (a *app) cmdPublish(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usagef("publish requires <dir>")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	var sum backend.ComicSummary
	err = a.withGallery(ctx, func(cl *backend.Client) error {
		sum, err = cl.PublishComic(ctx, ws.Comic)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Published %q (%s) version %d\n", sum.Title, sum.ID, sum.Version)
	return nil
}

func (a *app) cmdGallery(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usagef("gallery requires list|get")
	}
	switch args[0] {
	case "list":
		var list []backend.ComicSummary
		err := a.withGallery(ctx, func(cl *backend.Client) (err error) {
			list, err = cl.ListComics(ctx, joinArgs(args[1:]))
			return err
		})
		if err != nil {
			return err
		}
		for _, c := range list {
			fmt.Fprintf(a.out, "%s  %-30s %2d panel(s)  v%d  %s  %s\n",
				c.ID, c.Title, c.PanelCount, c.Version, c.Owner, c.UpdatedAt.Local().Format(time.DateTime))
		}
		fmt.Fprintf(a.out, "%d comic(s)\n", len(list))
	case "get":
		if len(args) < 3 {
			return usagef("gallery get requires <id> <dir>")
		}
		var c domain.Comic
		err := a.withGallery(ctx, func(cl *backend.Client) (err error) {
			c, err = cl.GetComic(ctx, args[1])
			return err
		})
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(args[2])
		if err != nil {
			return err
		}
		ws, err := storage.Init(abs, c)
		if err != nil {
			return err
		}
		if err := storage.UpdateIndex(ctx, ws.Root, c); err != nil {
			a.log.Warn("index update failed", slog.Any("err", err))
		}
		fmt.Fprintf(a.out, "Downloaded %q into %s\n", c.Title, abs)
	default:
		return usagef("unknown gallery command %q", args[0])
	}
	return nil
}

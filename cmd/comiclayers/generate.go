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
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"comiclayers/internal/comic"
	"comiclayers/internal/config"
	"comiclayers/internal/crash"
	"comiclayers/internal/domain"
	"comiclayers/internal/generate"
	applog "comiclayers/internal/log"
	"comiclayers/internal/prompt"
	"comiclayers/internal/scene"
	"comiclayers/internal/script"
	"comiclayers/internal/storage"
)

// generator builds a client whose persistent cache lives in the workspace index.
func (a *app) generator(ws *storage.Workspace) (*generate.Client, func(), error) {
	ac, err := storage.OpenAssetCache(ws.Root)
	if err != nil {
		return nil, nil, err
	}
	g := a.cfg.Generation
	c := generate.New(generate.Config{
		BaseURL:       g.BaseURL,
		Backoff:       g.Backoff(),
		RatePerMinute: g.RatePerMinute,
		CacheTTL:      g.CacheTTL(),
		Store:         ac,
		Events:        a.events,
	})
	return c, func() { _ = ac.Close() }, nil
}

func credentials() (generate.Credentials, error) {
	tok := config.DefaultToken()
	if tok == "" {
		return generate.Credentials{}, errors.New("no inference token: run `comiclayers token set <value>` or set " + config.EnvHFToken)
	}
	return generate.Credentials{Token: tok}, nil
}

// optionFlags registers -style and -model defaulting to the configured values.
func (a *app) optionFlags(fs *flag.FlagSet) func() (generate.Options, error) {
	style := fs.String("style", a.cfg.Generation.Style, "art style: "+styleNames())
	model := fs.String("model", a.cfg.Generation.Model, "image model")
	seed := fs.Int64("seed", 0, "fixed seed for a reproducible, cacheable image (0 = random)")
	return func() (generate.Options, error) {
		if *seed < 0 {
			return generate.Options{}, usagef("seed must not be negative")
		}
		st, err := prompt.ParseStyle(*style)
		if err != nil {
			return generate.Options{}, usagef("%v", err)
		}
		m, err := generate.ParseModel(*model)
		if err != nil {
			return generate.Options{}, usagef("%v", err)
		}
		return generate.Options{Style: st, Model: m, Seed: *seed}, nil
	}
}

func styleNames() string {
	var s []string
	for _, st := range prompt.Styles() {
		s = append(s, string(st))
	}
	return strings.Join(s, "|")
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// describeFailure turns a generation error into a user-facing line.
func describeFailure(err error) string {
	var ge *generate.Error
	if !errors.As(err, &ge) {
		return err.Error()
	}
	switch ge.Kind {
	case generate.MissingCredential:
		return "no inference token configured"
	case generate.InvalidCredential:
		return "the inference token was rejected"
	case generate.ServiceBusy, generate.ServiceUnavailable:
		return "the model is busy or still loading; try again later"
	default:
		return ge.Error()
	}
}

func (a *app) cmdGenerate(ctx context.Context, args []string) error {
	fs := newFlagSet("generate", a.out)
	opts := a.optionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	rest := fs.Args()
	if len(rest) < 4 {
		return usagef("generate requires <dir> <panelID> <type> <description>")
	}
	o, err := opts()
	if err != nil {
		return err
	}
	t, err := domain.ParseElementType(strings.ToLower(rest[2]))
	if err != nil {
		return usagef("%v", err)
	}
	ws, err := openWorkspace(rest[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	panelID := rest[1]
	p, ok := comic.Panel(ws.Comic, panelID)
	if !ok {
		return fmt.Errorf("panel %s not found", panelID)
	}
	creds, err := credentials()
	if err != nil {
		return err
	}
	client, closeFn, err := a.generator(ws)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx = applog.ContextWithPanel(applog.ContextWithComic(ctx, ws.Comic.ID), panelID)
	req := generate.ElementRequest{Description: joinArgs(rest[3:]), Type: t, Options: o}
	asset, err := client.GenerateElement(ctx, creds, req)
	if err != nil {
		return errors.New(describeFailure(err))
	}
	a.baseline(ctx, ws, p)
	e := generate.NewElement(asset, req)
	if err := a.commit(ctx, ws, comic.PlaceOn(ws.Comic, panelID, e), panelID); err != nil {
		return err
	}
	if asset.Cached {
		fmt.Fprintln(a.out, "Reused cached image")
	}
	if placed, ok := findPlaced(ws.Comic, panelID, e.ID); ok {
		printElement(a.out, placed)
	}
	return nil
}

func findPlaced(c domain.Comic, panelID, id string) (domain.Element, bool) {
	p, ok := comic.Panel(c, panelID)
	if !ok {
		return domain.Element{}, false
	}
	if p.Background != nil && p.Background.ID == id {
		return *p.Background, true
	}
	return scene.Find(p, id)
}

// cmdIllustrate generates one element per empty panel from its description,
// running the requests as a bounded batch.
func (a *app) cmdIllustrate(ctx context.Context, args []string) error {
	fs := newFlagSet("illustrate", a.out)
	opts := a.optionFlags(fs)
	typ := fs.String("type", string(domain.Background), "element type to generate")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if fs.NArg() < 1 {
		return usagef("illustrate requires <dir>")
	}
	o, err := opts()
	if err != nil {
		return err
	}
	t, err := domain.ParseElementType(strings.ToLower(*typ))
	if err != nil {
		return usagef("%v", err)
	}
	ws, err := openWorkspace(fs.Arg(0))
	if err != nil {
		return err
	}
	defer crash.Recover(ws)

	var reqs []generate.ElementRequest
	var panelIDs []string
	for _, p := range ws.Comic.Panels {
		if len(p.Elements) > 0 || p.Background != nil || strings.TrimSpace(p.Description) == "" {
			continue
		}
		reqs = append(reqs, generate.ElementRequest{Description: p.Description, Type: t, Options: o})
		panelIDs = append(panelIDs, p.ID)
	}
	if len(reqs) == 0 {
		fmt.Fprintln(a.out, "Every panel already has artwork")
		return nil
	}
	creds, err := credentials()
	if err != nil {
		return err
	}
	client, closeFn, err := a.generator(ws)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx = applog.ContextWithComic(ctx, ws.Comic.ID)
	results := client.GenerateBatch(ctx, creds, reqs, a.cfg.Generation.BatchLimit)
	c := ws.Comic
	var placed []string
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			a.log.WarnContext(applog.ContextWithPanel(ctx, panelIDs[i]), "panel illustration failed", slog.Any("err", r.Err))
			fmt.Fprintf(a.out, "Panel %s: %s\n", panelIDs[i], describeFailure(r.Err))
			continue
		}
		c = comic.PlaceOn(c, panelIDs[i], generate.NewElement(r.Asset, r.Request))
		placed = append(placed, panelIDs[i])
		fmt.Fprintf(a.out, "Panel %s: illustrated\n", panelIDs[i])
	}
	if len(placed) > 0 {
		if err := a.commit(ctx, ws, c, placed...); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d panel(s) failed", failed, len(results))
	}
	return nil
}

func (a *app) cmdScript(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usagef("script requires <dir> <panels> <idea>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n <= 0 {
		return usagef("panels must be a positive integer")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	creds, err := credentials()
	if err != nil {
		return err
	}
	client, closeFn, err := a.generator(ws)
	if err != nil {
		return err
	}
	defer closeFn()

	var characters []string
	for _, p := range ws.Comic.Panels {
		for _, e := range p.Elements {
			if e.Type == domain.Character && e.Name != "" {
				characters = append(characters, e.Name)
			}
		}
	}
	text, err := client.GenerateScript(ctx, creds, generate.ScriptRequest{Idea: joinArgs(args[2:]), Panels: n, Characters: characters})
	if err != nil {
		return errors.New(describeFailure(err))
	}
	fmt.Fprintln(a.out, text)

	beats, perr := script.Parse(text)
	for _, e := range perr {
		a.log.Debug("script line skipped", slog.Int("line", e.Line), slog.String("msg", e.Message))
	}
	lines := script.Descriptions(beats)
	if len(lines) == 0 {
		lines = script.Lines(text)
	}
	before := len(ws.Comic.Panels)
	if err := a.commit(ctx, ws, comic.AppendScriptPanels(ws.Comic, lines)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %d panel(s)\n", len(ws.Comic.Panels)-before)
	return nil
}

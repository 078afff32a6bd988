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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"comiclayers/internal/assetpack"
	"comiclayers/internal/comic"
	"comiclayers/internal/config"
	"comiclayers/internal/crash"
	"comiclayers/internal/domain"
	"comiclayers/internal/export"
	"comiclayers/internal/generate"
	applog "comiclayers/internal/log"
	"comiclayers/internal/scene"
	"comiclayers/internal/storage"
)

type app struct {
	cfg          config.AppConfig
	backendToken string
	out          io.Writer
	log          *slog.Logger
	events       generate.EventSink
}

func openWorkspace(dir string) (*storage.Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return storage.Open(abs)
}

// commit saves the comic, refreshes the search index and autosaves the
// touched panels. Index and autosave failures are logged, not returned.
func (a *app) commit(ctx context.Context, ws *storage.Workspace, c domain.Comic, panelIDs ...string) error {
	ws.Comic = c
	if err := storage.Save(ws); err != nil {
		return err
	}
	ctx = applog.ContextWithComic(ctx, c.ID)
	if err := storage.UpdateIndex(ctx, ws.Root, c); err != nil {
		a.log.WarnContext(ctx, "index update failed", slog.Any("err", err))
	}
	for _, id := range panelIDs {
		if p, ok := comic.Panel(c, id); ok {
			pctx := applog.ContextWithPanel(ctx, id)
			if err := storage.AutosavePanel(pctx, ws, p); err != nil {
				a.log.WarnContext(pctx, "panel autosave failed", slog.Any("err", err))
			}
		}
	}
	return nil
}

// baseline records the panel's current state once so the first edit can be reverted.
func (a *app) baseline(ctx context.Context, ws *storage.Workspace, p domain.Panel) {
	ctx = applog.ContextWithPanel(applog.ContextWithComic(ctx, ws.Comic.ID), p.ID)
	if _, ok, err := storage.LatestPanel(ctx, ws, p.ID); err == nil && !ok {
		if err := storage.AutosavePanel(ctx, ws, p); err != nil {
			a.log.WarnContext(ctx, "baseline autosave failed", slog.Any("err", err))
		}
	}
}

func (a *app) cmdInit(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usagef("init requires <dir>")
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	c := comic.New(joinArgs(args[1:]))
	a.log.Info("init comic", slog.String("root", abs), slog.String("title", c.Title))
	ws, err := storage.Init(abs, c)
	if err != nil {
		return err
	}
	if err := storage.UpdateIndex(ctx, ws.Root, c); err != nil {
		a.log.Warn("index update failed", slog.Any("err", err))
	}
	fmt.Fprintf(a.out, "Created %q at %s\n", c.Title, abs)
	return nil
}

func (a *app) cmdOpen(args []string) error {
	if len(args) < 1 {
		return usagef("open requires <dir>")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	c := ws.Comic
	if ws.Recovered {
		fmt.Fprintln(a.out, "Note: comic.json was unreadable; opened from the latest backup.")
	}
	fmt.Fprintf(a.out, "Comic: %s (%s)\n", c.Title, c.ID)
	fmt.Fprintf(a.out, "Panels: %d\n", len(c.Panels))
	for i, p := range c.Panels {
		bg := "no background"
		if p.Background != nil {
			bg = "background " + p.Background.ID
		}
		fmt.Fprintf(a.out, "  %d. %s %q: %d element(s), %s\n", i+1, p.ID, p.Title, len(p.Elements), bg)
		for _, e := range scene.RenderOrder(p.Elements) {
			fmt.Fprintf(a.out, "       z=%g %s %s %q\n", e.Position.Z, e.Type, e.ID, e.Name)
		}
	}
	fmt.Fprintln(a.out, "Root:", ws.Root)
	return nil
}

func (a *app) cmdTitle(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usagef("title requires <dir> <title>")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	if err := a.commit(ctx, ws, comic.SetTitle(ws.Comic, joinArgs(args[1:]))); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Renamed to", ws.Comic.Title)
	return nil
}

func (a *app) cmdPanel(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usagef("panel requires add|remove|move and <dir>")
	}
	sub, dir, rest := args[0], args[1], args[2:]
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	switch sub {
	case "add":
		c, p := comic.AddPanel(ws.Comic, joinArgs(rest))
		if err := a.commit(ctx, ws, c, p.ID); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Added panel", p.ID)
	case "remove":
		if len(rest) < 1 {
			return usagef("panel remove requires <panelID>")
		}
		if _, ok := comic.Panel(ws.Comic, rest[0]); !ok {
			return fmt.Errorf("panel %s not found", rest[0])
		}
		if err := a.commit(ctx, ws, comic.RemovePanel(ws.Comic, rest[0])); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Removed panel", rest[0])
	case "move":
		if len(rest) < 2 {
			return usagef("panel move requires <panelID> <index>")
		}
		idx, err := strconv.Atoi(rest[1])
		if err != nil {
			return usagef("index must be an integer: %v", err)
		}
		if _, ok := comic.Panel(ws.Comic, rest[0]); !ok {
			return fmt.Errorf("panel %s not found", rest[0])
		}
		if err := a.commit(ctx, ws, comic.MovePanel(ws.Comic, rest[0], idx)); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Moved panel", rest[0])
	default:
		return usagef("unknown panel command %q", sub)
	}
	return nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, usagef("not a number: %q", s)
		}
		out[i] = v
	}
	return out, nil
}

// cmdEdit applies one scene mutation to an element of a panel.
func (a *app) cmdEdit(ctx context.Context, cmd string, args []string) error {
	want := map[string]int{"move": 2, "resize": 2, "rotate": 1, "opacity": 1, "reorder": 1, "remove": 0}[cmd]
	if len(args) < 3+want {
		return usagef("%s requires <dir> <panelID> <elementID> and %d value(s)", cmd, want)
	}
	dir, panelID, elementID, vals := args[0], args[1], args[2], args[3:3+want]
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	p, ok := comic.Panel(ws.Comic, panelID)
	if !ok {
		return fmt.Errorf("panel %s not found", panelID)
	}
	if _, ok := scene.Find(p, elementID); !ok {
		return fmt.Errorf("element %s not found in panel %s", elementID, panelID)
	}

	var edit func(domain.Panel) domain.Panel
	switch cmd {
	case "reorder":
		d, err := scene.ParseDirection(strings.ToLower(vals[0]))
		if err != nil {
			return usagef("%v", err)
		}
		edit = func(p domain.Panel) domain.Panel { return scene.Reorder(p, elementID, d) }
	case "remove":
		edit = func(p domain.Panel) domain.Panel { return scene.Remove(p, elementID) }
	default:
		nums, err := parseFloats(vals)
		if err != nil {
			return err
		}
		switch cmd {
		case "move":
			edit = func(p domain.Panel) domain.Panel { return scene.Move(p, elementID, nums[0], nums[1]) }
		case "resize":
			if nums[0] <= 0 || nums[1] <= 0 {
				return usagef("size must be positive")
			}
			edit = func(p domain.Panel) domain.Panel { return scene.Resize(p, elementID, nums[0], nums[1]) }
		case "rotate":
			edit = func(p domain.Panel) domain.Panel { return scene.Rotate(p, elementID, nums[0]) }
		case "opacity":
			edit = func(p domain.Panel) domain.Panel { return scene.SetOpacity(p, elementID, nums[0]) }
		}
	}

	a.baseline(ctx, ws, p)
	if err := a.commit(ctx, ws, comic.UpdatePanel(ws.Comic, panelID, edit), panelID); err != nil {
		return err
	}
	if e, ok := findAny(ws.Comic, panelID, elementID); ok {
		printElement(a.out, e)
	} else {
		fmt.Fprintln(a.out, "Removed", elementID)
	}
	return nil
}

func findAny(c domain.Comic, panelID, elementID string) (domain.Element, bool) {
	p, ok := comic.Panel(c, panelID)
	if !ok {
		return domain.Element{}, false
	}
	return scene.Find(p, elementID)
}

func printElement(w io.Writer, e domain.Element) {
	b := scene.Bounds(e)
	fmt.Fprintf(w, "%s %s %q\n", e.Type, e.ID, e.Name)
	fmt.Fprintf(w, "  position (%g, %g) z=%g size %gx%g rotation %g opacity %g\n",
		e.Position.X, e.Position.Y, e.Position.Z, e.Size.Width, e.Size.Height, e.Rotation, e.Opacity)
	fmt.Fprintf(w, "  bounds (%.1f, %.1f) %.1fx%.1f\n", b.X, b.Y, b.W, b.H)
}

func (a *app) cmdSelect(args []string) error {
	if len(args) < 3 {
		return usagef("select requires <dir> <panelID> <elementID>")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	p, ok := comic.Panel(ws.Comic, args[1])
	if !ok {
		return fmt.Errorf("panel %s not found", args[1])
	}
	e, ok := scene.Selected(scene.Select(p, args[2]))
	if !ok {
		return fmt.Errorf("element %s not found in panel %s", args[2], args[1])
	}
	printElement(a.out, e)
	return nil
}

func (a *app) cmdHit(args []string) error {
	if len(args) < 4 {
		return usagef("hit requires <dir> <panelID> <x> <y>")
	}
	nums, err := parseFloats(args[2:4])
	if err != nil {
		return err
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	p, ok := comic.Panel(ws.Comic, args[1])
	if !ok {
		return fmt.Errorf("panel %s not found", args[1])
	}
	id, ok := scene.HitTest(p, scene.Pt{X: nums[0], Y: nums[1]})
	if !ok {
		fmt.Fprintln(a.out, "Nothing at that point")
		return nil
	}
	e, _ := scene.Find(p, id)
	printElement(a.out, e)
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usagef("history requires <dir> <panelID>")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	list, err := storage.ListSnapshots(ctx, ws, args[1], storage.DefaultSnapshotsKept)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No autosaves for", args[1])
		return nil
	}
	for i, s := range list {
		var p domain.Panel
		n := "?"
		if json.Unmarshal(s.Blob, &p) == nil {
			n = strconv.Itoa(len(p.Elements))
		}
		fmt.Fprintf(a.out, "%2d. %s  %s element(s)\n", i, s.TS.Local().Format(time.DateTime), n)
	}
	return nil
}

// cmdRevert restores the autosave before the newest one and records the
// result as the new newest autosave.
func (a *app) cmdRevert(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usagef("revert requires <dir> <panelID>")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	panelID := args[1]
	if _, ok := comic.Panel(ws.Comic, panelID); !ok {
		return fmt.Errorf("panel %s not found", panelID)
	}
	list, err := storage.ListSnapshots(ctx, ws, panelID, 2)
	if err != nil {
		return err
	}
	if len(list) < 2 {
		return fmt.Errorf("nothing to revert for panel %s", panelID)
	}
	var prev domain.Panel
	if err := json.Unmarshal(list[1].Blob, &prev); err != nil {
		return fmt.Errorf("decode autosave: %w", err)
	}
	if err := a.commit(ctx, ws, comic.ReplacePanel(ws.Comic, prev), panelID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Reverted panel %s to %s\n", panelID, list[1].TS.Local().Format(time.DateTime))
	return nil
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usagef("search requires <dir> <query>")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	if _, err := storage.DetectAndRebuildIndex(ctx, ws.Root, ws.Comic); err != nil {
		return err
	}
	res, err := storage.Search(ctx, ws.Root, storage.SearchQuery{Text: joinArgs(args[1:])})
	if err != nil {
		return err
	}
	for _, r := range res {
		fmt.Fprintf(a.out, "%-18s %s  %s\n", r.Type, r.Path, r.Text)
	}
	fmt.Fprintf(a.out, "%d result(s)\n", len(res))
	return nil
}

func (a *app) cmdExport(args []string) error {
	fs := newFlagSet("export", a.out)
	captions := fs.Bool("captions", a.cfg.Export.Captions, "print panel titles and descriptions under raster pages")
	scale := fs.Float64("scale", 0, "raster scale factor")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	args = fs.Args()
	if len(args) < 2 {
		return usagef("export requires <dir> and a format")
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	out := ""
	if len(args) > 2 {
		out = args[2]
	}
	caption := export.CaptionOptions{Enabled: *captions, Font: a.cfg.Export.CaptionFont}
	var paths []string
	switch f := strings.ToLower(args[1]); f {
	case "json":
		p, err := export.ExportJSON(ws, out)
		if err != nil {
			return err
		}
		paths = append(paths, p)
	case "png":
		paths, err = export.ExportPNG(ws, out, export.PNGOptions{Scale: *scale, Caption: caption})
		if err != nil {
			return err
		}
	case "pdf":
		p, err := export.ExportPDF(ws, out, export.PDFOptions{})
		if err != nil {
			return err
		}
		paths = append(paths, p)
	case "cbz":
		p, err := export.ExportCBZ(ws, out, export.CBZOptions{Scale: *scale, Caption: caption})
		if err != nil {
			return err
		}
		paths = append(paths, p)
	case "web", "print":
		paths, err = export.BatchExport(ws, export.BatchOptions{Preset: export.PresetName(f), OutDir: out, Scale: *scale, Caption: caption})
		if err != nil {
			return err
		}
	default:
		return usagef("unknown export format %q", f)
	}
	for _, p := range paths {
		fmt.Fprintln(a.out, "Wrote", p)
	}
	return nil
}

func (a *app) cmdAssets(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usagef("assets prune <dir> [days] | pack <dir> <zip> | install <dir> <zip>")
	}
	switch args[0] {
	case "prune":
	case "pack", "install":
		if len(args) != 3 {
			return usagef("assets %s <dir> <zip>", args[0])
		}
		ws, err := openWorkspace(args[1])
		if err != nil {
			return err
		}
		if args[0] == "pack" {
			n, err := assetpack.Export(ws.Root, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Packed %d file(s) into %s\n", n, args[2])
			return nil
		}
		n, err := assetpack.Install(ws.Root, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Installed %d file(s)\n", n)
		return nil
	default:
		return usagef("unknown assets subcommand %q", args[0])
	}
	days := 30
	if len(args) > 2 {
		d, err := strconv.Atoi(args[2])
		if err != nil || d < 0 {
			return usagef("days must be a non-negative integer")
		}
		days = d
	}
	ws, err := openWorkspace(args[1])
	if err != nil {
		return err
	}
	ac, err := storage.OpenAssetCache(ws.Root)
	if err != nil {
		return err
	}
	defer ac.Close()
	n, err := ac.Prune(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pruned %d cached asset(s)\n", n)
	return nil
}

// cmdPlace puts a local image file on a panel. The file is copied into the
// workspace so the comic stays self-contained.
func (a *app) cmdPlace(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return usagef("place <dir> <panelID> <type> <image> [name...]")
	}
	t, err := domain.ParseElementType(strings.ToLower(args[2]))
	if err != nil {
		return usagef("%v", err)
	}
	ws, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	panelID := args[1]
	p, ok := comic.Panel(ws.Comic, panelID)
	if !ok {
		return fmt.Errorf("panel %s not found", panelID)
	}
	ref, err := assetpack.Import(ws.Root, args[3])
	if err != nil {
		return err
	}
	name := joinArgs(args[4:])
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[3]), filepath.Ext(args[3]))
	}
	a.baseline(ctx, ws, p)
	e := generate.NewElement(generate.Asset{DataURI: ref}, generate.ElementRequest{Description: name, Type: t})
	if err := a.commit(ctx, ws, comic.PlaceOn(ws.Comic, panelID, e), panelID); err != nil {
		return err
	}
	if placed, ok := findPlaced(ws.Comic, panelID, e.ID); ok {
		printElement(a.out, placed)
	}
	return nil
}

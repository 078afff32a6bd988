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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"comiclayers/internal/config"
	"comiclayers/internal/crash"
	applog "comiclayers/internal/log"
	"comiclayers/internal/telemetry"
	"comiclayers/internal/version"
)

const usageText = `Comic Layers: layered comic panels from generated artwork

Usage:
  comiclayers version                                      Show version
  comiclayers init <dir> [title]                           Create a comic workspace
  comiclayers open <dir>                                   Print a summary of the comic
  comiclayers title <dir> <title...>                       Rename the comic
  comiclayers panel add <dir> [title]                      Append an empty panel
  comiclayers panel remove <dir> <panelID>                 Delete a panel
  comiclayers panel move <dir> <panelID> <index>           Change reading order
  comiclayers generate [-style S] [-model M] [-seed N] <dir> <panelID> <type> <description...>
                                                           Generate an element and place it
  comiclayers illustrate [-style S] [-model M] [-seed N] [-type T] <dir>
                                                           Generate art for every empty panel
  comiclayers script <dir> <panels> <idea...>              Generate a script and add its panels
  comiclayers place <dir> <panelID> <type> <image> [name]  Place a local image file
  comiclayers move <dir> <panelID> <elementID> <x> <y>
  comiclayers resize <dir> <panelID> <elementID> <w> <h>
  comiclayers rotate <dir> <panelID> <elementID> <deg>
  comiclayers opacity <dir> <panelID> <elementID> <0..1>
  comiclayers reorder <dir> <panelID> <elementID> up|down
  comiclayers select <dir> <panelID> <elementID>           Show an element's geometry
  comiclayers remove <dir> <panelID> <elementID>
  comiclayers hit <dir> <panelID> <x> <y>                  Top-most element under a point
  comiclayers history <dir> <panelID>                      List panel autosaves
  comiclayers revert <dir> <panelID>                       Restore the previous autosave
  comiclayers search <dir> <query...>                      Full-text search
  comiclayers export [-captions] [-scale N] <dir> json|pdf|png|cbz|web|print [out]
  comiclayers assets prune <dir> [days]                    Drop cached generations
  comiclayers assets pack|install <dir> <zip>              Share the assets folder
  comiclayers token set <value> | clear | status           Manage the inference token
  comiclayers serve [-addr A] [-memory]                    Run the gallery server
  comiclayers publish <dir>                                Upload the comic to the gallery
  comiclayers gallery list [query] | get <id> <dir>        Browse the gallery
`

// usageError marks bad invocations; they exit with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	defer crash.Recover(nil)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, out io.Writer) int {
	cfg, backendToken, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", cfgErr))
	}

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.NewDefault(tcfg)
	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Default().Flush(fctx)
	}()

	a := &app{cfg: cfg, backendToken: backendToken, out: out, log: l}
	if tc := telemetry.Default(); tc.Enabled() {
		a.events = tc
	}

	if len(args) == 0 {
		fmt.Fprint(out, usageText)
		return 0
	}
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))
	err := a.dispatch(ctx, args[0], args[1:])
	var ue *usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		fmt.Fprintln(out, "Error:", ue.msg)
		fmt.Fprint(out, usageText)
		return 2
	default:
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(a.out, "Comic Layers", version.String())
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usageText)
		return nil
	case "init":
		return a.cmdInit(ctx, args)
	case "open":
		return a.cmdOpen(args)
	case "title":
		return a.cmdTitle(ctx, args)
	case "panel":
		return a.cmdPanel(ctx, args)
	case "generate":
		return a.cmdGenerate(ctx, args)
	case "illustrate":
		return a.cmdIllustrate(ctx, args)
	case "place":
		return a.cmdPlace(ctx, args)
	case "script":
		return a.cmdScript(ctx, args)
	case "move", "resize", "rotate", "opacity", "reorder", "remove":
		return a.cmdEdit(ctx, cmd, args)
	case "select":
		return a.cmdSelect(args)
	case "hit":
		return a.cmdHit(args)
	case "history":
		return a.cmdHistory(ctx, args)
	case "revert":
		return a.cmdRevert(ctx, args)
	case "search":
		return a.cmdSearch(ctx, args)
	case "export":
		return a.cmdExport(args)
	case "assets":
		return a.cmdAssets(ctx, args)
	case "token":
		return a.cmdToken(args)
	case "serve":
		return a.cmdServe(ctx, args)
	case "publish":
		return a.cmdPublish(ctx, args)
	case "gallery":
		return a.cmdGallery(ctx, args)
	}
	return usagef("unknown command %q", cmd)
}

func joinArgs(args []string) string { return strings.TrimSpace(strings.Join(args, " ")) }

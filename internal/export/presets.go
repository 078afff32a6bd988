/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"comiclayers/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export across several formats.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <root>/exports/<preset>/.
//   - PDF and CBZ produce one file named after the comic title.
//   - PNG produces panel-<n>.png inside a png/ subfolder.
//   - JSON writes the download file into a json/ subfolder.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, png, cbz, json; empty means preset defaults
	Panels  []int    // zero-based indexes; empty means all panels
	Scale   float64  // when > 0 overrides the preset's raster scale
	OutDir  string
	// Caption applies to raster formats.
	Caption CaptionOptions
}

// BatchExport runs exports according to the given preset and returns the
// written paths.
func BatchExport(ws *storage.Workspace, opt BatchOptions) ([]string, error) {
	if ws == nil {
		return nil, errors.New("workspace is nil")
	}
	if len(ws.Comic.Panels) == 0 {
		return nil, errors.New("comic has no panels")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = "batch"
		}
	}
	baseOut = resolveOut(ws, baseOut, "")
	scale := presetScale(opt.Preset)
	if opt.Scale > 0 {
		scale = opt.Scale
	}
	name := exportBaseName(ws.Comic)

	var out []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			p, err := ExportPDF(ws, filepath.Join(baseOut, name+".pdf"), PDFOptions{Panels: opt.Panels})
			if err != nil {
				return out, fmt.Errorf("pdf: %w", err)
			}
			out = append(out, p)
		case "cbz":
			p, err := ExportCBZ(ws, filepath.Join(baseOut, name+".cbz"), CBZOptions{Scale: scale, Panels: opt.Panels, Caption: opt.Caption})
			if err != nil {
				return out, fmt.Errorf("cbz: %w", err)
			}
			out = append(out, p)
		case "png":
			paths, err := ExportPNG(ws, filepath.Join(baseOut, "png"), PNGOptions{Scale: scale, Panels: opt.Panels, Caption: opt.Caption})
			out = append(out, paths...)
			if err != nil {
				return out, fmt.Errorf("png: %w", err)
			}
		case "json":
			p, err := ExportJSON(ws, filepath.Join(baseOut, "json"))
			if err != nil {
				return out, fmt.Errorf("json: %w", err)
			}
			out = append(out, p)
		default:
			return out, fmt.Errorf("unknown format: %s", f)
		}
	}
	return out, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "cbz", "json"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"pdf"}
	}
}

func presetScale(p PresetName) float64 {
	if p == PresetPrint {
		return 2
	}
	return 1
}

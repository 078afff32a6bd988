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
	"os"
	"path/filepath"
	"strings"

	"comiclayers/internal/storage"
)

// PNGOptions controls per-panel PNG export.
type PNGOptions struct {
	Scale   float64
	// Panels selects zero-based panel indexes; empty means all.
	Panels  []int
	Caption CaptionOptions
}

// ExportPNG writes one PNG per panel into outDir and returns the written paths.
// Files are named panel-<n>.png with n 1-based and zero-padded to the panel count.
func ExportPNG(ws *storage.Workspace, outDir string, opt PNGOptions) ([]string, error) {
	if ws == nil {
		return nil, errors.New("workspace is nil")
	}
	outDir = resolveOut(ws, outDir, "png")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	idx := panelIndexes(len(ws.Comic.Panels), opt.Panels)
	pad := padWidth(len(ws.Comic.Panels))
	ro := RenderOptions{Root: ws.Root, Scale: opt.Scale, Caption: opt.Caption}
	var out []string
	for _, i := range idx {
		b, err := EncodePNG(ws.Comic.Panels[i], ro)
		if err != nil {
			return out, fmt.Errorf("panel %d: %w", i+1, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("panel-%0*d.png", pad, i+1))
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return out, fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
		out = append(out, path)
	}
	return out, nil
}

// resolveOut places relative or empty outputs under <root>/exports.
func resolveOut(ws *storage.Workspace, p, def string) string {
	if strings.TrimSpace(p) == "" {
		p = def
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ws.Root, storage.ExportsDirName, p)
}

func panelIndexes(n int, sel []int) []int {
	if len(sel) == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, len(sel))
	for _, i := range sel {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	return out
}

func padWidth(n int) int {
	w := len(fmt.Sprint(n))
	if w < 3 {
		return 3
	}
	return w
}

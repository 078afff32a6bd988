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
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"comiclayers/internal/domain"
	applog "comiclayers/internal/log"
	"comiclayers/internal/storage"
)

// PDFOptions controls PDF export. Units are points; one canvas unit is one point.
type PDFOptions struct {
	// Width/Height fix the page size; zero derives it from the panel content.
	Width, Height float64
	Panels        []int
}

// ExportPDF writes the comic as a single PDF with one page per panel. Each
// page draws the background and then the elements in render order, honouring
// rotation and opacity. It returns the written path.
func ExportPDF(ws *storage.Workspace, outPath string, opt PDFOptions) (string, error) {
	if ws == nil {
		return "", errors.New("workspace is nil")
	}
	c := ws.Comic
	if len(c.Panels) == 0 {
		return "", errors.New("comic has no panels")
	}
	outPath = resolveOut(ws, outPath, filepath.Join("pdf", exportBaseName(c)+".pdf"))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	l := applog.WithComponent("export")

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: DefaultCanvasWidth, Ht: DefaultCanvasHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetTitle(c.Title, true)
	pdf.SetCreator("comiclayers", true)

	ro := RenderOptions{Root: ws.Root, Width: opt.Width, Height: opt.Height}
	for _, i := range panelIndexes(len(c.Panels), opt.Panels) {
		p := c.Panels[i]
		canvas := Canvas(p, ro)
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: canvas.W, Ht: canvas.H})
		for j, e := range layers(p) {
			if e.Opacity <= 0 || e.Size.Width <= 0 || e.Size.Height <= 0 {
				continue
			}
			x := e.Position.X - canvas.X
			y := e.Position.Y - canvas.Y
			pdf.SetAlpha(e.Opacity, "Normal")
			pdf.TransformBegin()
			// gofpdf rotates counter-clockwise
			pdf.TransformRotate(-e.Rotation, x+e.Size.Width/2, y+e.Size.Height/2)
			name := fmt.Sprintf("p%d-l%d-%s", i, j, e.ID)
			if err := registerElementImage(pdf, name, ws.Root, e); err != nil {
				l.Warn("element image unavailable; drawing placeholder", slog.String("panel", p.ID), slog.String("element", e.ID), slog.Any("err", err))
				pdf.SetFillColor(int(placeholderColor.R), int(placeholderColor.G), int(placeholderColor.B))
				pdf.Rect(x, y, e.Size.Width, e.Size.Height, "F")
			} else {
				pdf.ImageOptions(name, x, y, e.Size.Width, e.Size.Height, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
			}
			pdf.TransformEnd()
			pdf.SetAlpha(1, "Normal")
		}
		if pdf.Err() {
			return "", fmt.Errorf("pdf panel %d: %w", i+1, pdf.Error())
		}
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return outPath, nil
}

// registerElementImage normalises any decodable image to PNG and registers it
// under name.
func registerElementImage(pdf *gofpdf.Fpdf, name, root string, e domain.Element) error {
	img, err := loadImage(root, e.ImageURL)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
	if pdf.Err() {
		return pdf.Error()
	}
	return nil
}

// exportBaseName is the download name without its extension.
func exportBaseName(c domain.Comic) string {
	n := strings.NewReplacer("/", "-", "\\", "-").Replace(comicFileBase(c))
	if n == "" || n == "." || n == ".." {
		return "comic"
	}
	return n
}

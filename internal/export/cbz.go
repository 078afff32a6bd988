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
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"comiclayers/internal/comic"
	"comiclayers/internal/domain"
	"comiclayers/internal/storage"
)

// CBZOptions controls CBZ export. Pages are the rendered panels as PNG.
type CBZOptions struct {
	Scale   float64
	Panels  []int
	Caption CaptionOptions
}

// ExportCBZ packages the rendered panels into a CBZ (ZIP) archive with a
// ComicInfo.xml manifest for reader compatibility. It returns the written path.
func ExportCBZ(ws *storage.Workspace, outPath string, opt CBZOptions) (string, error) {
	if ws == nil {
		return "", errors.New("workspace is nil")
	}
	c := ws.Comic
	if len(c.Panels) == 0 {
		return "", errors.New("comic has no panels")
	}
	outPath = resolveOut(ws, outPath, filepath.Join("cbz", exportBaseName(c)+".cbz"))
	zw, f, err := createZip(outPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	idx := panelIndexes(len(c.Panels), opt.Panels)
	pad := padWidth(len(idx))
	ro := RenderOptions{Root: ws.Root, Scale: opt.Scale, Caption: opt.Caption}
	for n, i := range idx {
		b, err := EncodePNG(c.Panels[i], ro)
		if err != nil {
			_ = zw.Close()
			return "", fmt.Errorf("panel %d: %w", i+1, err)
		}
		if err := addZipFile(zw, fmt.Sprintf("page-%0*d.png", pad, n+1), b); err != nil {
			_ = zw.Close()
			return "", fmt.Errorf("add page %d: %w", n+1, err)
		}
	}
	if err := addZipFile(zw, "ComicInfo.xml", []byte(buildComicInfoXML(c, idx))); err != nil {
		_ = zw.Close()
		return "", fmt.Errorf("add ComicInfo.xml: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize cbz: %w", err)
	}
	return outPath, nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create cbz: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// buildComicInfoXML emits the ComicRack manifest. Panel titles become page
// bookmarks.
func buildComicInfoXML(c domain.Comic, idx []int) string {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<ComicInfo xmlns:xsi=\"http://www.w3.org/2001/XMLSchema-instance\">\n")
	fmt.Fprintf(&b, "  <Title>%s</Title>\n", xmlEsc(c.Title))
	fmt.Fprintf(&b, "  <Series>%s</Series>\n", xmlEsc(c.Title))
	fmt.Fprintf(&b, "  <PageCount>%d</PageCount>\n", len(idx))
	var summary []string
	for _, i := range idx {
		if d := strings.TrimSpace(c.Panels[i].Description); d != "" {
			summary = append(summary, d)
		}
	}
	if len(summary) > 0 {
		fmt.Fprintf(&b, "  <Summary>%s</Summary>\n", xmlEsc(strings.Join(summary, "\n")))
	}
	b.WriteString("  <Pages>\n")
	for n, i := range idx {
		p := c.Panels[i]
		if p.Title != "" {
			fmt.Fprintf(&b, "    <Page Image=\"%d\" Bookmark=\"%s\"/>\n", n, xmlEsc(p.Title))
		} else {
			fmt.Fprintf(&b, "    <Page Image=\"%d\"/>\n", n)
		}
	}
	b.WriteString("  </Pages>\n")
	b.WriteString("</ComicInfo>\n")
	return b.String()
}

func xmlEsc(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;", "'", "&apos;")
	return r.Replace(s)
}

func comicFileBase(c domain.Comic) string {
	return strings.TrimSuffix(comic.ExportFileName(c), ".json")
}

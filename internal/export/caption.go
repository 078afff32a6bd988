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
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"comiclayers/internal/domain"
)

const (
	captionSizePx = 14
	captionPadPx  = 8
)

var fonts sync.Map // path -> *opentype.Font

// CaptionText is the text printed under a panel: the title, then the description.
func CaptionText(p domain.Panel) string {
	title := strings.TrimSpace(p.Title)
	desc := strings.TrimSpace(p.Description)
	switch {
	case title == "":
		return desc
	case desc == "":
		return title
	}
	return title + ": " + desc
}

// captionFace returns the face used for captions at scale s. An empty path
// selects basicfont, which ignores the scale.
func captionFace(path string, s float64) (font.Face, error) {
	if strings.TrimSpace(path) == "" {
		return basicfont.Face7x13, nil
	}
	var f *opentype.Font
	if v, ok := fonts.Load(path); ok {
		f = v.(*opentype.Font)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", path, err)
		}
		f, err = opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", path, err)
		}
		fonts.Store(path, f)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: captionSizePx * s, DPI: 72, Hinting: font.HintingFull})
}

// wrapLines breaks text on whitespace so each line fits maxWidth pixels.
// A word wider than maxWidth gets a line of its own. Newlines are kept.
func wrapLines(face font.Face, text string, maxWidth int) []string {
	var lines []string
	space := font.MeasureString(face, " ").Ceil()
	for _, para := range strings.Split(text, "\n") {
		var cur strings.Builder
		width := 0
		for _, word := range strings.Fields(para) {
			w := font.MeasureString(face, word).Ceil()
			if width > 0 && width+space+w > maxWidth {
				lines = append(lines, cur.String())
				cur.Reset()
				width = 0
			}
			if width > 0 {
				cur.WriteByte(' ')
				width += space
			}
			cur.WriteString(word)
			width += w
		}
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
		}
	}
	return lines
}

// addCaption returns img extended by a white strip holding the wrapped text.
func addCaption(img *image.RGBA, text string, face font.Face, s float64) *image.RGBA {
	b := img.Bounds()
	pad := int(captionPadPx * s)
	lines := wrapLines(face, text, b.Dx()-2*pad)
	if len(lines) == 0 {
		return img
	}
	m := face.Metrics()
	lineH := m.Height.Ceil()
	strip := len(lines)*lineH + 2*pad
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+strip))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Src)

	d := &font.Drawer{Dst: out, Src: image.NewUniform(color.Black), Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(pad, b.Dy()+pad+i*lineH+m.Ascent.Ceil())
		d.DrawString(line)
	}
	return out
}

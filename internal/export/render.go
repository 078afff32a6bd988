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
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp" // register decoder

	"comiclayers/internal/domain"
	applog "comiclayers/internal/log"
	"comiclayers/internal/scene"
)

// Default canvas used when a panel's content fits inside it.
const (
	DefaultCanvasWidth  = 800
	DefaultCanvasHeight = 600
)

var placeholderColor = color.RGBA{R: 204, G: 204, B: 204, A: 255}

// RenderOptions controls panel rasterisation.
type RenderOptions struct {
	// Root resolves relative image paths. Usually the workspace root.
	Root string
	// Width/Height fix the canvas. When zero the canvas is the default size
	// grown to include every element.
	Width, Height float64
	// Scale is device pixels per canvas unit; <= 0 means 1.
	Scale float64
	// Fill is the base colour; nil means white.
	Fill color.Color
	// Caption adds a strip with the panel's title and description below the art.
	Caption CaptionOptions
}

// CaptionOptions configures the caption strip of raster exports.
type CaptionOptions struct {
	Enabled bool
	// Font is a TTF/OTF file; empty uses a built-in bitmap face.
	Font string
}

func (o RenderOptions) scale() float64 {
	if o.Scale <= 0 {
		return 1
	}
	return o.Scale
}

// Canvas returns the canvas rectangle for p.
func Canvas(p domain.Panel, opt RenderOptions) scene.Rect {
	if opt.Width > 0 && opt.Height > 0 {
		return scene.Rect{W: opt.Width, H: opt.Height}
	}
	r := scene.Rect{W: DefaultCanvasWidth, H: DefaultCanvasHeight}
	for _, e := range layers(p) {
		r = r.Union(scene.Bounds(e))
	}
	return r
}

// layers returns the background (if any) followed by the elements in render order.
func layers(p domain.Panel) []domain.Element {
	out := make([]domain.Element, 0, len(p.Elements)+1)
	if p.Background != nil {
		out = append(out, *p.Background)
	}
	return append(out, scene.RenderOrder(p.Elements)...)
}

// RenderPanel composites the panel into an RGBA image. Images that cannot be
// loaded are drawn as grey placeholders.
func RenderPanel(p domain.Panel, opt RenderOptions) (*image.RGBA, error) {
	l := applog.WithComponent("export")
	s := opt.scale()
	canvas := Canvas(p, opt)
	w := int(math.Ceil(canvas.W * s))
	h := int(math.Ceil(canvas.H * s))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty canvas for panel %s", p.ID)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := opt.Fill
	if fill == nil {
		fill = color.White
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)

	// canvas units -> device pixels
	toDevice := scene.Affine{A: s, D: s}.Mul(scene.Translate(-canvas.X, -canvas.Y))
	for _, e := range layers(p) {
		if e.Opacity <= 0 || e.Size.Width <= 0 || e.Size.Height <= 0 {
			continue
		}
		src, err := loadImage(opt.Root, e.ImageURL)
		if err != nil {
			l.Warn("element image unavailable; drawing placeholder", slog.String("panel", p.ID), slog.String("element", e.ID), slog.Any("err", err))
			src = placeholder()
		}
		drawElement(dst, e, src, toDevice, s)
	}
	if text := CaptionText(p); opt.Caption.Enabled && text != "" {
		face, err := captionFace(opt.Caption.Font, s)
		if err != nil {
			return nil, err
		}
		dst = addCaption(dst, text, face, s)
	}
	return dst, nil
}

func drawElement(dst *image.RGBA, e domain.Element, src image.Image, toDevice scene.Affine, s float64) {
	w := int(math.Max(1, math.Round(e.Size.Width*s)))
	h := int(math.Max(1, math.Round(e.Size.Height*s)))
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
	applyOpacity(scaled, e.Opacity)

	pxToLocal := scene.Affine{A: e.Size.Width / float64(w), D: e.Size.Height / float64(h)}
	m := toDevice.Mul(scene.ElementTransform(e)).Mul(pxToLocal)
	draw.BiLinear.Transform(dst, f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}, scaled, scaled.Bounds(), draw.Over, nil)
}

func placeholder() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, placeholderColor)
	return img
}

// applyOpacity scales a premultiplied image in place.
func applyOpacity(img *image.RGBA, opacity float64) {
	if opacity >= 1 {
		return
	}
	for i := range img.Pix {
		img.Pix[i] = uint8(math.Round(float64(img.Pix[i]) * opacity))
	}
}

// EncodePNG renders the panel and returns PNG bytes.
func EncodePNG(p domain.Panel, opt RenderOptions) ([]byte, error) {
	img, err := RenderPanel(p, opt)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var errRemoteImage = errors.New("remote images are not fetched during export")

// loadImage decodes a data: URI or a local file path. Relative paths resolve
// against root.
func loadImage(root, ref string) (image.Image, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, errors.New("empty image reference")
	case strings.HasPrefix(ref, "data:"):
		b, err := decodeDataURI(ref)
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		return img, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return nil, errRemoteImage
	}
	path := strings.TrimPrefix(ref, "file://")
	if !filepath.IsAbs(path) && root != "" {
		path = filepath.Join(root, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data uri")
	}
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// some producers drop the padding
			if b2, err2 := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err2 == nil {
				return b2, nil
			}
			return nil, fmt.Errorf("data uri base64: %w", err)
		}
		return b, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data uri payload: %w", err)
	}
	return []byte(s), nil
}

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
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/image/font/basicfont"

	"comiclayers/internal/domain"
)

func TestCaptionText(t *testing.T) {
	cases := []struct {
		title, desc, want string
	}{
		{"", "", ""},
		{"Arrival", "", "Arrival"},
		{"", " The robot lands. ", "The robot lands."},
		{"Arrival", "The robot lands.", "Arrival: The robot lands."},
	}
	for _, tc := range cases {
		if got := CaptionText(domain.Panel{Title: tc.title, Description: tc.desc}); got != tc.want {
			t.Errorf("CaptionText(%q, %q) = %q, want %q", tc.title, tc.desc, got, tc.want)
		}
	}
}

func TestWrapLines(t *testing.T) {
	face := basicfont.Face7x13 // 7px per glyph
	got := wrapLines(face, "aaa bbb ccc", 50)
	if want := []string{"aaa bbb", "ccc"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("wrap = %q, want %q", got, want)
	}
	got = wrapLines(face, "extraordinarily long\nnext", 30)
	if want := []string{"extraordinarily", "long", "next"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("wrap = %q, want %q", got, want)
	}
	if got := wrapLines(face, "   ", 100); len(got) != 0 {
		t.Fatalf("blank text wrapped to %q", got)
	}
}

func TestRenderPanelCaptionStrip(t *testing.T) {
	p := domain.Panel{ID: "p", Title: "Arrival"}
	opt := RenderOptions{Width: 100, Height: 50, Caption: CaptionOptions{Enabled: true}}
	img, err := RenderPanel(p, opt)
	if err != nil {
		t.Fatalf("RenderPanel: %v", err)
	}
	// one 13px line plus 8px padding above and below
	if got := img.Bounds().Dy(); got != 50+13+16 {
		t.Fatalf("height = %d", got)
	}
	dark := false
	for y := 50; y < img.Bounds().Dy() && !dark; y++ {
		for x := 0; x < 100; x++ {
			if img.RGBAAt(x, y).R < 128 {
				dark = true
				break
			}
		}
	}
	if !dark {
		t.Fatal("caption strip has no text pixels")
	}

	plain, err := RenderPanel(domain.Panel{ID: "q"}, opt)
	if err != nil || plain.Bounds().Dy() != 50 {
		t.Fatalf("panel without text = %v, %v", plain.Bounds(), err)
	}

	opt.Caption.Font = filepath.Join(t.TempDir(), "missing.ttf")
	if _, err := RenderPanel(p, opt); err == nil {
		t.Fatal("expected error for missing font file")
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package prompt builds the text sent to the image and script models.
// Everything here is pure: identical inputs give identical prompts.
package prompt

import (
	"fmt"
	"strings"

	"comiclayers/internal/domain"
)

// Style selects a preset of style tokens prepended to every image prompt.
type Style string

const (
	PixelArt  Style = "PIXEL_ART"
	ComicBook Style = "COMIC_BOOK"
	Realistic Style = "REALISTIC"
	Cartoon   Style = "CARTOON"

	DefaultStyle = ComicBook
)

var presets = map[Style]string{
	PixelArt:  "isometric pixel art, 16-bit style",
	ComicBook: "comic book art style, cel shaded",
	Realistic: "realistic 3D render, high detail",
	Cartoon:   "cartoon style, vibrant colors",
}

// Styles lists the known presets in a stable order.
func Styles() []Style { return []Style{PixelArt, ComicBook, Realistic, Cartoon} }

// ParseStyle accepts the preset name in any case; empty input yields the default.
func ParseStyle(s string) (Style, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultStyle, nil
	}
	st := Style(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := presets[st]; !ok {
		return "", fmt.Errorf("unknown style %q", s)
	}
	return st, nil
}

// Preset returns the style tokens; unknown styles fall back to the default.
func Preset(s Style) string {
	if p, ok := presets[s]; ok {
		return p
	}
	return presets[DefaultStyle]
}

const qualityBoosters = "high quality, detailed"

var compositionHints = map[domain.ElementType]string{
	domain.Character:  ", single character centered, full body pose, clean edges, white background, no text",
	domain.Prop:       ", single object centered, clean edges, white background, no text",
	domain.Background: ", detailed environment, establishing shot, no characters, no text",
}

// Exclusion lists used as the negative prompt when the caller gives none.
const (
	CharacterExclusions  = "blurry, low quality, text, watermark, signature, extra limbs, deformed, multiple characters, cropped"
	PropExclusions       = "blurry, low quality, text, watermark, signature, deformed, people, hands, cropped"
	BackgroundExclusions = "blurry, low quality, text, watermark, signature, people, characters, distorted perspective"
)

// Exclusions returns the negative prompt for an element type.
func Exclusions(t domain.ElementType) string {
	switch t {
	case domain.Prop:
		return PropExclusions
	case domain.Background:
		return BackgroundExclusions
	default:
		return CharacterExclusions
	}
}

// Compose builds the positive and negative prompt for one element. A
// non-blank negativeOverride replaces the per-type exclusion list.
func Compose(description string, t domain.ElementType, style Style, negativeOverride string) (positive, negative string) {
	hint, ok := compositionHints[t]
	if !ok {
		hint = compositionHints[domain.Character]
	}
	positive = fmt.Sprintf("%s, %s, %s%s", Preset(style), strings.TrimSpace(description), qualityBoosters, hint)
	negative = strings.TrimSpace(negativeOverride)
	if negative == "" {
		negative = Exclusions(t)
	}
	return positive, negative
}

// DefaultTone is used when the caller leaves the script tone empty.
const DefaultTone = "adventure"

// ScriptPrompt builds the instruction for the text model.
func ScriptPrompt(idea string, panels int, characters []string, tone string) string {
	if strings.TrimSpace(tone) == "" {
		tone = DefaultTone
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-panel comic script about %s.", panels, strings.TrimSpace(idea))
	var names []string
	for _, c := range characters {
		if c = strings.TrimSpace(c); c != "" {
			names = append(names, c)
		}
	}
	if len(names) > 0 {
		fmt.Fprintf(&b, " Include these characters: %s.", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, " The tone should be %s.", tone)
	b.WriteString(" Each panel should be a clear, descriptive sentence.")
	return b.String()
}

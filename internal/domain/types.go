/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// This file defines the data model of a layered comic: a Comic holds Panels in
// reading order, each Panel holds z-ordered Elements plus an optional Background.
// All types are plain values; the scene and comic packages evolve them
// copy-on-write.

// ElementType classifies a placed asset. It is fixed at creation.
type ElementType string

const (
	Character  ElementType = "character"
	Prop       ElementType = "prop"
	Background ElementType = "background"
)

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	switch t {
	case Character, Prop, Background:
		return true
	}
	return false
}

// ParseElementType converts user input to an ElementType.
func ParseElementType(s string) (ElementType, error) {
	t := ElementType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown element type %q (want character, prop or background)", s)
	}
	return t, nil
}

// Default geometry for freshly generated elements.
const (
	DefaultElementWidth  = 200
	DefaultElementHeight = 200
	DefaultOpacity       = 1.0
)

// Position is a canvas location. X/Y have their origin top-left with y growing
// downward. Z is a layering key, not a rank: ties are broken by collection order.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Size of an element on the canvas; both dimensions are > 0 for well-formed elements.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a positioned visual asset.
// IsSelected is editing-session state and is never written to the persisted form.
type Element struct {
	ID         string      `json:"id"`
	Type       ElementType `json:"type"`
	Name       string      `json:"name,omitempty"`
	ImageURL   string      `json:"imageUrl"`
	Position   Position    `json:"position"`
	Size       Size        `json:"size"`
	Rotation   float64     `json:"rotation"`
	Opacity    float64     `json:"opacity"`
	IsSelected bool        `json:"-"`
}

// UnmarshalJSON applies the documented defaults for optional fields:
// a missing opacity means fully opaque, a missing rotation means 0.
// Stored rotations are brought into [0,360).
func (e *Element) UnmarshalJSON(b []byte) error {
	type plain Element
	aux := struct {
		*plain
		Opacity *float64 `json:"opacity"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Opacity != nil {
		e.Opacity = *aux.Opacity
	} else {
		e.Opacity = DefaultOpacity
	}
	e.Rotation = math.Mod(e.Rotation, 360)
	if e.Rotation < 0 {
		e.Rotation += 360
	}
	if e.Rotation >= 360 {
		e.Rotation = 0
	}
	return nil
}

// Panel is one frame of the comic. Elements are kept in insertion order;
// render order is derived from Position.Z. Background is never part of Elements.
type Panel struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Elements    []Element `json:"elements"`
	Background  *Element  `json:"background,omitempty"`
}

// Comic is the root aggregate. The order of Panels is the reading order.
type Comic struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Panels []Panel `json:"panels"`
}

// Clone returns a deep copy of the panel so that callers can mutate the copy
// without aliasing the original's slices or background pointer.
func (p Panel) Clone() Panel {
	out := p
	if p.Elements != nil {
		out.Elements = append([]Element(nil), p.Elements...)
	}
	if p.Background != nil {
		bg := *p.Background
		out.Background = &bg
	}
	return out
}

// Clone returns a deep copy of the comic.
func (c Comic) Clone() Comic {
	out := c
	if c.Panels != nil {
		out.Panels = make([]Panel, len(c.Panels))
		for i, p := range c.Panels {
			out.Panels[i] = p.Clone()
		}
	}
	return out
}

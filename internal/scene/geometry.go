/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Basic 2D geometry for element placement. Canvas coordinates have their origin
// top-left, y grows downward, rotation is clockwise in degrees around the
// element centre.

import (
	"math"

	"comiclayers/internal/domain"
)

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Affine is a 2D affine transform:
// | a c e |
// | b d f |
// | 0 0 1 |
type Affine struct{ A, B, C, D, E, F float64 }

var Identity = Affine{A: 1, D: 1}

func (m Affine) Mul(n Affine) Affine {
	return Affine{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Invert returns the inverse transform, or Identity when m is singular.
func (m Affine) Invert() Affine {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity
	}
	inv := 1 / det
	return Affine{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}
}

func Translate(tx, ty float64) Affine { return Affine{A: 1, D: 1, E: tx, F: ty} }

// RotateDeg rotates clockwise on screen (y down) by deg degrees.
func RotateDeg(deg float64) Affine {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return Affine{A: c, B: s, C: -s, D: c}
}

// ElementTransform maps element-local coordinates (0..w, 0..h) to canvas coordinates.
func ElementTransform(e domain.Element) Affine {
	cx := e.Size.Width / 2
	cy := e.Size.Height / 2
	return Translate(e.Position.X+cx, e.Position.Y+cy).
		Mul(RotateDeg(e.Rotation)).
		Mul(Translate(-cx, -cy))
}

// Bounds returns the canvas-space bounding box of the rotated element.
func Bounds(e domain.Element) Rect {
	m := ElementTransform(e)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	w, h := e.Size.Width, e.Size.Height
	for _, c := range []Pt{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		p := m.Apply(c)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// HitTest returns the id of the top-most element under p, honouring rotation.
// The background is not considered.
func HitTest(p domain.Panel, pt Pt) (string, bool) {
	ordered := RenderOrder(p.Elements)
	for i := len(ordered) - 1; i >= 0; i-- { // top-most first
		e := ordered[i]
		q := ElementTransform(e).Invert().Apply(pt)
		if (Rect{W: e.Size.Width, H: e.Size.Height}).Contains(q) {
			return e.ID, true
		}
	}
	return "", false
}

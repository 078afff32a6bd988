/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"comiclayers/internal/domain"
)

// Direction of a layer move in render order.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection converts user input to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown direction %q (want up or down)", s)
}

// RenderOrder returns the back-to-front drawing order: a stable sort by
// Position.Z ascending, equal keys keeping their collection order.
// The input is not modified.
func RenderOrder(elements []domain.Element) []domain.Element {
	out := append([]domain.Element(nil), elements...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position.Z < out[j].Position.Z })
	return out
}

// MoveLayer moves the target one step up or down in render order by swapping
// its z with the neighbour's. Neighbours come from RenderOrder, never from raw
// storage order. At the extreme, or for an unknown id, an unchanged copy is returned.
func MoveLayer(elements []domain.Element, targetID string, dir Direction) []domain.Element {
	out := append([]domain.Element(nil), elements...)
	ordered := RenderOrder(out)
	rank := -1
	for i, e := range ordered {
		if e.ID == targetID {
			rank = i
			break
		}
	}
	if rank < 0 {
		return out
	}
	var nb int
	switch dir {
	case Up:
		nb = rank + 1
	case Down:
		nb = rank - 1
	default:
		return out
	}
	if nb < 0 || nb >= len(ordered) {
		return out
	}

	// Equal keys would make the swap a no-op; renumber to render rank first.
	if ordered[rank].Position.Z == ordered[nb].Position.Z {
		rankOf := make(map[string]int, len(ordered))
		for i, e := range ordered {
			rankOf[e.ID] = i
		}
		for i := range out {
			out[i].Position.Z = float64(rankOf[out[i].ID] + 1)
		}
		ordered = RenderOrder(out)
	}

	targetZ := ordered[rank].Position.Z
	neighbourID := ordered[nb].ID
	neighbourZ := ordered[nb].Position.Z
	for i := range out {
		switch out[i].ID {
		case targetID:
			out[i].Position.Z = neighbourZ
		case neighbourID:
			out[i].Position.Z = targetZ
		}
	}
	return out
}

// NextZ returns the layering key that places a new element above all others.
func NextZ(elements []domain.Element) float64 {
	if len(elements) == 0 {
		return 1
	}
	top := elements[0].Position.Z
	for _, e := range elements[1:] {
		top = math.Max(top, e.Position.Z)
	}
	return top + 1
}

var (
	// ErrInvalidSize is returned when a width or height is not strictly positive.
	ErrInvalidSize = errors.New("scene: width and height must be > 0")
	// ErrNonFinite is returned for NaN or infinite geometry.
	ErrNonFinite = errors.New("scene: geometry must be finite")
)

// Patch is a partial transform; nil fields are left unchanged.
type Patch struct {
	X, Y          *float64
	Width, Height *float64
	Rotation      *float64
}

// Transform applies a partial update to e. NaN, infinite and non-positive
// sizes are rejected and leave the element untouched. Rotation is
// normalised into [0,360).
func Transform(e domain.Element, p Patch) (domain.Element, error) {
	for _, v := range []*float64{p.X, p.Y, p.Width, p.Height, p.Rotation} {
		if v != nil && !finite(*v) {
			return e, ErrNonFinite
		}
	}
	out := e
	if p.Width != nil {
		if !(*p.Width > 0) {
			return e, ErrInvalidSize
		}
		out.Size.Width = *p.Width
	}
	if p.Height != nil {
		if !(*p.Height > 0) {
			return e, ErrInvalidSize
		}
		out.Size.Height = *p.Height
	}
	if p.X != nil {
		out.Position.X = *p.X
	}
	if p.Y != nil {
		out.Position.Y = *p.Y
	}
	if p.Rotation != nil {
		out.Rotation = NormalizeRotation(*p.Rotation)
	}
	return out, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// NormalizeRotation maps any angle in degrees into [0,360).
func NormalizeRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 { // -1e-15 + 360 rounds up
		r = 0
	}
	return r
}

// ClampOpacity keeps v within [0,1]; NaN becomes fully opaque.
func ClampOpacity(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return domain.DefaultOpacity
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

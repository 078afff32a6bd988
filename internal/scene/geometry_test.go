/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"math"
	"testing"

	"comiclayers/internal/domain"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestAffineInvert(t *testing.T) {
	m := Translate(10, 20).Mul(RotateDeg(30))
	p := Pt{3, 4}
	q := m.Invert().Apply(m.Apply(p))
	if !approx(p.X, q.X) || !approx(p.Y, q.Y) {
		t.Fatalf("invert roundtrip: %v -> %v", p, q)
	}
	if (Affine{}).Invert() != Identity {
		t.Fatalf("singular invert should be identity")
	}
}

func TestBoundsRotated(t *testing.T) {
	e := domain.Element{Position: domain.Position{X: 0, Y: 0}, Size: domain.Size{Width: 100, Height: 50}, Rotation: 90}
	b := Bounds(e)
	// rotating around the centre (50,25) swaps the extents
	if !approx(b.W, 50) || !approx(b.H, 100) || !approx(b.X, 25) || !approx(b.Y, -25) {
		t.Fatalf("unexpected bounds: %+v", b)
	}
}

func TestRectUnion(t *testing.T) {
	u := Rect{X: 0, Y: 0, W: 10, H: 10}.Union(Rect{X: 5, Y: -5, W: 10, H: 10})
	if u != (Rect{X: 0, Y: -5, W: 15, H: 15}) {
		t.Fatalf("union = %+v", u)
	}
}

func TestHitTestPicksTopMost(t *testing.T) {
	low := domain.Element{ID: "low", Position: domain.Position{X: 0, Y: 0, Z: 1}, Size: domain.Size{Width: 100, Height: 100}}
	high := domain.Element{ID: "high", Position: domain.Position{X: 50, Y: 50, Z: 2}, Size: domain.Size{Width: 100, Height: 100}}
	p := domain.Panel{Elements: []domain.Element{high, low}}

	if id, ok := HitTest(p, Pt{75, 75}); !ok || id != "high" {
		t.Fatalf("overlap hit = %q, %v", id, ok)
	}
	if id, ok := HitTest(p, Pt{10, 10}); !ok || id != "low" {
		t.Fatalf("low hit = %q, %v", id, ok)
	}
	if _, ok := HitTest(p, Pt{500, 500}); ok {
		t.Fatalf("expected miss")
	}
}

func TestHitTestHonoursRotation(t *testing.T) {
	e := domain.Element{ID: "bar", Size: domain.Size{Width: 100, Height: 10}, Rotation: 90}
	p := domain.Panel{Elements: []domain.Element{e}}
	// unrotated the bar covers (90,5); rotated it stands upright around (50,5)
	if _, ok := HitTest(p, Pt{90, 5}); ok {
		t.Fatalf("rotated element should not cover its old extent")
	}
	if id, ok := HitTest(p, Pt{50, 40}); !ok || id != "bar" {
		t.Fatalf("rotated hit = %q, %v", id, ok)
	}
}

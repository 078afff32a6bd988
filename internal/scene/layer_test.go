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
	"reflect"
	"testing"

	"comiclayers/internal/domain"
)

func el(id string, z float64) domain.Element {
	return domain.Element{
		ID:       id,
		Type:     domain.Prop,
		Position: domain.Position{Z: z},
		Size:     domain.Size{Width: 10, Height: 10},
		Opacity:  1,
	}
}

func ids(es []domain.Element) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestRenderOrderStableAndIdempotent(t *testing.T) {
	in := []domain.Element{el("a", 3), el("b", 1), el("c", 3), el("d", 2), el("e", 1)}
	got := RenderOrder(in)
	want := []string{"b", "e", "d", "a", "c"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("render order: got %v want %v", ids(got), want)
	}
	again := RenderOrder(got)
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("render order not idempotent: %v vs %v", ids(got), ids(again))
	}
	if len(got) != len(in) {
		t.Fatalf("render order not total: %d vs %d", len(got), len(in))
	}
	// input untouched
	if in[0].ID != "a" {
		t.Fatalf("input was reordered")
	}
}

func TestMoveLayerAtExtremesIsNoop(t *testing.T) {
	in := []domain.Element{el("a", 1), el("b", 2), el("c", 3)}
	if got := MoveLayer(in, "c", Up); !reflect.DeepEqual(got, in) {
		t.Fatalf("top up changed collection: %+v", got)
	}
	if got := MoveLayer(in, "a", Down); !reflect.DeepEqual(got, in) {
		t.Fatalf("bottom down changed collection: %+v", got)
	}
	if got := MoveLayer(in, "missing", Up); !reflect.DeepEqual(got, in) {
		t.Fatalf("unknown id changed collection: %+v", got)
	}
}

func TestMoveLayerSwapsWithRenderNeighbourNotStorageNeighbour(t *testing.T) {
	// storage order differs from render order
	in := []domain.Element{el("top", 9), el("bottom", 1), el("mid", 5)}
	got := MoveLayer(in, "bottom", Up)
	if want := []string{"mid", "bottom", "top"}; !reflect.DeepEqual(ids(RenderOrder(got)), want) {
		t.Fatalf("render order after move: got %v want %v", ids(RenderOrder(got)), want)
	}
	// only z values changed; storage order is preserved
	if !reflect.DeepEqual(ids(got), ids(in)) {
		t.Fatalf("storage order changed: %v", ids(got))
	}
	if in[1].Position.Z != 1 {
		t.Fatalf("input mutated")
	}
}

func TestMoveLayerWithTiedZ(t *testing.T) {
	in := []domain.Element{el("a", 1), el("b", 1), el("c", 1)}
	got := MoveLayer(in, "a", Up)
	if want := []string{"b", "a", "c"}; !reflect.DeepEqual(ids(RenderOrder(got)), want) {
		t.Fatalf("tie move up: got %v want %v", ids(RenderOrder(got)), want)
	}
	// no ambiguity left between the moved pair
	order := RenderOrder(got)
	if order[0].Position.Z == order[1].Position.Z {
		t.Fatalf("ambiguous z after move: %+v", order)
	}

	got = MoveLayer(in, "c", Down)
	if want := []string{"a", "c", "b"}; !reflect.DeepEqual(ids(RenderOrder(got)), want) {
		t.Fatalf("tie move down: got %v want %v", ids(RenderOrder(got)), want)
	}
}

func TestMoveLayerUpThenDownRestoresOrder(t *testing.T) {
	in := []domain.Element{el("a", 1), el("b", 2), el("c", 3)}
	got := MoveLayer(MoveLayer(in, "a", Up), "a", Down)
	if !reflect.DeepEqual(ids(RenderOrder(got)), ids(RenderOrder(in))) {
		t.Fatalf("up+down did not restore: %v", ids(RenderOrder(got)))
	}
}

func TestNextZ(t *testing.T) {
	if z := NextZ(nil); z != 1 {
		t.Fatalf("empty NextZ = %v, want 1", z)
	}
	if z := NextZ([]domain.Element{el("a", 4), el("b", -2)}); z != 5 {
		t.Fatalf("NextZ = %v, want 5", z)
	}
}

func TestTransformPartialUpdate(t *testing.T) {
	e := el("a", 1)
	x := 42.0
	got, err := Transform(e, Patch{X: &x})
	if err != nil {
		t.Fatalf("Transform error: %v", err)
	}
	if got.Position.X != 42 || got.Position.Y != 0 || got.Size != e.Size || got.Rotation != 0 {
		t.Fatalf("unexpected transform result: %+v", got)
	}
}

func TestTransformRejectsNonPositiveSize(t *testing.T) {
	e := el("a", 1)
	zero, w := 0.0, 50.0
	got, err := Transform(e, Patch{Width: &w, Height: &zero})
	if err != ErrInvalidSize {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
	if got != e {
		t.Fatalf("element changed on rejected transform: %+v", got)
	}
}

func TestTransformRejectsNonFinite(t *testing.T) {
	e := el("a", 1)
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		v := bad
		for name, p := range map[string]Patch{
			"x":        {X: &v},
			"y":        {Y: &v},
			"width":    {Width: &v},
			"height":   {Height: &v},
			"rotation": {Rotation: &v},
		} {
			got, err := Transform(e, p)
			if err != ErrNonFinite {
				t.Fatalf("%s=%v: expected ErrNonFinite, got %v", name, bad, err)
			}
			if got != e {
				t.Fatalf("%s=%v: element changed: %+v", name, bad, got)
			}
		}
	}
}

func TestNormalizeRotation(t *testing.T) {
	cases := map[float64]float64{0: 0, 90: 90, 360: 0, 450: 90, -90: 270, -720: 0, 359.5: 359.5}
	for in, want := range cases {
		if got := NormalizeRotation(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("NormalizeRotation(%v) = %v, want %v", in, got, want)
		}
	}
	if got := NormalizeRotation(math.NaN()); got != 0 {
		t.Fatalf("NaN rotation = %v", got)
	}
}

func TestClampOpacity(t *testing.T) {
	if ClampOpacity(-1) != 0 || ClampOpacity(2) != 1 || ClampOpacity(0.25) != 0.25 || ClampOpacity(math.NaN()) != 1 {
		t.Fatalf("ClampOpacity out of range handling wrong")
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("up"); err != nil || d != Up {
		t.Fatalf("ParseDirection(up) = %v, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatalf("expected error")
	}
}

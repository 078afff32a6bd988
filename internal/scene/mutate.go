/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import "comiclayers/internal/domain"

// The functions below are the only sanctioned way to evolve a Panel's elements.
// Each returns a new Panel value and never writes into the caller's slices.
// A missing element id degrades to a no-op: several controls may edit the same
// panel and the target can disappear between the click and the call.

// Find returns the element with the given id from the z-ordered collection.
func Find(p domain.Panel, id string) (domain.Element, bool) {
	for _, e := range p.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Element{}, false
}

// Selected returns the currently selected element, if any.
func Selected(p domain.Panel) (domain.Element, bool) {
	for _, e := range p.Elements {
		if e.IsSelected {
			return e, true
		}
	}
	return domain.Element{}, false
}

// Select marks exactly the matching element as selected and clears all others
// in the same step. An unknown id leaves nothing selected.
func Select(p domain.Panel, id string) domain.Panel {
	out := p.Clone()
	for i := range out.Elements {
		out.Elements[i].IsSelected = out.Elements[i].ID == id
	}
	return out
}

// Deselect clears the selection.
func Deselect(p domain.Panel) domain.Panel {
	return Select(p, "")
}

// Place attaches e to the panel. Backgrounds go to the background slot and
// replace any previous one; everything else is appended on top of the stack.
func Place(p domain.Panel, e domain.Element) domain.Panel {
	out := p.Clone()
	e.IsSelected = false
	if !finite(e.Position.X) || !finite(e.Position.Y) {
		e.Position.X, e.Position.Y = 0, 0
	}
	if !(e.Size.Width > 0) || !(e.Size.Height > 0) || !finite(e.Size.Width) || !finite(e.Size.Height) {
		e.Size = domain.Size{Width: domain.DefaultElementWidth, Height: domain.DefaultElementHeight}
	}
	e.Opacity = ClampOpacity(e.Opacity)
	e.Rotation = NormalizeRotation(e.Rotation)
	if e.Type == domain.Background {
		out.Background = &e
		return out
	}
	e.Position.Z = NextZ(out.Elements)
	out.Elements = append(out.Elements, e)
	return out
}

// RemoveBackground clears the background slot.
func RemoveBackground(p domain.Panel) domain.Panel {
	out := p.Clone()
	out.Background = nil
	return out
}

// Move sets only the x/y position of the matching element. Non-finite
// coordinates leave it unchanged.
func Move(p domain.Panel, id string, x, y float64) domain.Panel {
	return update(p, id, func(e domain.Element) domain.Element {
		out, err := Transform(e, Patch{X: &x, Y: &y})
		if err != nil {
			return e
		}
		return out
	})
}

// Resize sets only the size of the matching element. Non-positive dimensions
// leave the element unchanged.
func Resize(p domain.Panel, id string, width, height float64) domain.Panel {
	return update(p, id, func(e domain.Element) domain.Element {
		out, err := Transform(e, Patch{Width: &width, Height: &height})
		if err != nil {
			return e
		}
		return out
	})
}

// Rotate sets the rotation of the matching element, normalised into [0,360).
// A non-finite angle leaves it unchanged.
func Rotate(p domain.Panel, id string, deg float64) domain.Panel {
	return update(p, id, func(e domain.Element) domain.Element {
		out, err := Transform(e, Patch{Rotation: &deg})
		if err != nil {
			return e
		}
		return out
	})
}

// SetOpacity sets the opacity of the matching element, clamped to [0,1].
func SetOpacity(p domain.Panel, id string, v float64) domain.Panel {
	return update(p, id, func(e domain.Element) domain.Element {
		e.Opacity = ClampOpacity(v)
		return e
	})
}

// Reorder moves the element one step in render order.
func Reorder(p domain.Panel, id string, dir Direction) domain.Panel {
	out := p.Clone()
	out.Elements = MoveLayer(p.Elements, id, dir)
	return out
}

// Remove drops the matching element. Removing the selected element leaves no selection.
func Remove(p domain.Panel, id string) domain.Panel {
	out := p.Clone()
	kept := make([]domain.Element, 0, len(p.Elements))
	for _, e := range p.Elements {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	out.Elements = kept
	return out
}

func update(p domain.Panel, id string, fn func(domain.Element) domain.Element) domain.Panel {
	out := p.Clone()
	for i := range out.Elements {
		if out.Elements[i].ID == id {
			out.Elements[i] = fn(out.Elements[i])
			break
		}
	}
	return out
}

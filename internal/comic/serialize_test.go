/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package comic

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"comiclayers/internal/domain"
)

func sampleComic() domain.Comic {
	return domain.Comic{
		ID:    "comic-1",
		Title: "Sample",
		Panels: []domain.Panel{
			{
				ID:          "panel-1",
				Title:       "Opening",
				Description: "A knight at dawn",
				Elements: []domain.Element{
					{ID: "element-1", Type: domain.Character, Name: "a knight", ImageURL: "data:image/png;base64,AA==", Position: domain.Position{X: 10, Y: 20, Z: 2}, Size: domain.Size{Width: 200, Height: 200}, Rotation: 15, Opacity: 0.8},
					{ID: "element-2", Type: domain.Prop, ImageURL: "data:image/png;base64,AQ==", Position: domain.Position{X: 5, Y: 5, Z: 1}, Size: domain.Size{Width: 50, Height: 40}, Opacity: 0},
				},
				Background: &domain.Element{ID: "element-3", Type: domain.Background, ImageURL: "data:image/jpeg;base64,/w==", Size: domain.Size{Width: 800, Height: 600}, Opacity: 1},
			},
			{ID: "panel-2", Description: "Empty", Elements: []domain.Element{}},
		},
	}
}

func TestRoundTripIsStructurallyEqual(t *testing.T) {
	c := sampleComic()
	b, err := Serialize(c)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(b)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, c)
	}
}

func TestRoundTripFreshComic(t *testing.T) {
	c, _ := AddPanel(New("Fresh"), "")
	b, err := Serialize(c)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(b)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, c)
	}
}

func TestDeserializeDefaultsAndUnknownFields(t *testing.T) {
	in := `{"id":"comic-1","title":"T","version":7,"panels":[{"id":"panel-1","elements":[
		{"id":"element-1","type":"prop","imageUrl":"x","position":{"x":1,"y":2,"z":3},"size":{"width":4,"height":5},"glow":true}
	]}]}`
	c, err := Deserialize([]byte(in))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	e := c.Panels[0].Elements[0]
	if e.Opacity != 1 || e.Rotation != 0 || c.Panels[0].Background != nil {
		t.Fatalf("defaults not applied: %+v", c.Panels[0])
	}
}

func TestDeserializeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{"id":`,
		"missing id":     `{"title":"x","panels":[]}`,
		"panel no id":    `{"id":"c","panels":[{"elements":[]}]}`,
		"bad type":       `{"id":"c","panels":[{"id":"p","elements":[{"id":"e","type":"vehicle","size":{"width":1,"height":1}}]}]}`,
		"zero size":      `{"id":"c","panels":[{"id":"p","elements":[{"id":"e","type":"prop","size":{"width":0,"height":1}}]}]}`,
		"bg in elements": `{"id":"c","panels":[{"id":"p","elements":[{"id":"e","type":"background","size":{"width":1,"height":1}}]}]}`,
		"prop as bg":     `{"id":"c","panels":[{"id":"p","elements":[],"background":{"id":"e","type":"prop","size":{"width":1,"height":1}}}]}`,
		"duplicate ids":  `{"id":"c","panels":[{"id":"p","elements":[{"id":"e","type":"prop","size":{"width":1,"height":1}},{"id":"e","type":"prop","size":{"width":1,"height":1}}]}]}`,
		"opacity range":  `{"id":"c","panels":[{"id":"p","elements":[{"id":"e","type":"prop","opacity":2,"size":{"width":1,"height":1}}]}]}`,
	}
	for name, in := range cases {
		_, err := Deserialize([]byte(in))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: expected *ParseError, got %v", name, err)
		}
	}
}

func TestParseErrorMessageHasPath(t *testing.T) {
	_, err := Deserialize([]byte(`{"id":"c","panels":[{"id":"p","elements":[{"id":"e","type":"prop","size":{"width":-1,"height":1}}]}]}`))
	if err == nil || !strings.Contains(err.Error(), "panels[0].elements[0].size") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSelectionNotPersisted(t *testing.T) {
	c := sampleComic()
	c.Panels[0].Elements[0].IsSelected = true
	b, err := Serialize(c)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(b)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Panels[0].Elements[0].IsSelected {
		t.Fatalf("selection survived a round trip")
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	c := LoadOrDefault([]byte("not json"), l)
	if c.Title != DefaultTitle || c.ID == "" {
		t.Fatalf("fallback comic = %+v", c)
	}
	if !strings.Contains(buf.String(), "starting fresh") {
		t.Fatalf("fallback not logged: %q", buf.String())
	}

	b, _ := Serialize(sampleComic())
	if got := LoadOrDefault(b, l); got.ID != "comic-1" {
		t.Fatalf("valid state not loaded: %+v", got)
	}
	if got := LoadOrDefault(nil, nil); got.Title != DefaultTitle {
		t.Fatalf("empty state = %+v", got)
	}
}

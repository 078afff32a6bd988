package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestComicJSONRoundTrip(t *testing.T) {
	c := Comic{
		ID:    "comic-1",
		Title: "RoundTrip",
		Panels: []Panel{
			{
				ID:    "panel-1",
				Title: "Opening",
				Elements: []Element{
					{ID: "element-1", Type: Character, ImageURL: "data:image/png;base64,AA==", Position: Position{X: 10, Y: 20, Z: 1}, Size: Size{Width: 200, Height: 200}, Opacity: 0.5},
				},
				Background: &Element{ID: "element-2", Type: Background, ImageURL: "data:image/png;base64,AA==", Size: Size{Width: 800, Height: 600}, Opacity: 1},
			},
		},
	}

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Comic
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Title != c.Title {
		t.Fatalf("title mismatch: got %q want %q", got.Title, c.Title)
	}
	if len(got.Panels) != 1 || len(got.Panels[0].Elements) != 1 || got.Panels[0].Background == nil {
		t.Fatalf("unexpected panel structure: %+v", got)
	}
	if got.Panels[0].Elements[0].Opacity != 0.5 {
		t.Fatalf("opacity not preserved: %v", got.Panels[0].Elements[0].Opacity)
	}
}

func TestElementDefaultsOnMissingFields(t *testing.T) {
	var e Element
	in := `{"id":"e","type":"prop","imageUrl":"x","position":{"x":1,"y":2,"z":3},"size":{"width":4,"height":5},"futureField":true}`
	if err := json.Unmarshal([]byte(in), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Opacity != DefaultOpacity {
		t.Fatalf("opacity default: got %v want %v", e.Opacity, DefaultOpacity)
	}
	if e.Rotation != 0 {
		t.Fatalf("rotation default: got %v", e.Rotation)
	}
	if e.ID != "e" || e.Type != Prop || e.Position.Z != 3 {
		t.Fatalf("fields not decoded: %+v", e)
	}
}

func TestElementExplicitZeroOpacityIsKept(t *testing.T) {
	var e Element
	if err := json.Unmarshal([]byte(`{"id":"e","type":"prop","opacity":0}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Opacity != 0 {
		t.Fatalf("explicit zero opacity lost: %v", e.Opacity)
	}
}

func TestStoredRotationIsNormalized(t *testing.T) {
	cases := map[string]float64{"-90": 270, "450": 90, "360": 0, "-720": 0, "45.5": 45.5}
	for in, want := range cases {
		var e Element
		if err := json.Unmarshal([]byte(`{"id":"e","type":"prop","rotation":`+in+`}`), &e); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if e.Rotation != want {
			t.Errorf("rotation %s: got %v want %v", in, e.Rotation, want)
		}
	}
}

func TestSelectionIsNotPersisted(t *testing.T) {
	b, err := json.Marshal(Element{ID: "e", Type: Prop, IsSelected: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "elected") {
		t.Fatalf("selection leaked into persisted form: %s", b)
	}
}

func TestParseElementType(t *testing.T) {
	for _, s := range []string{"character", "prop", "background"} {
		if _, err := ParseElementType(s); err != nil {
			t.Fatalf("ParseElementType(%q): %v", s, err)
		}
	}
	if _, err := ParseElementType("vehicle"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestPanelCloneDoesNotAlias(t *testing.T) {
	p := Panel{ID: "p", Elements: []Element{{ID: "a"}}, Background: &Element{ID: "bg"}}
	c := p.Clone()
	c.Elements[0].ID = "changed"
	c.Background.ID = "changed"
	if p.Elements[0].ID != "a" || p.Background.ID != "bg" {
		t.Fatalf("clone aliases original: %+v", p)
	}
}

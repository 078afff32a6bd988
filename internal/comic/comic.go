/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package comic composes panels into a Comic and owns identity and the
// persisted form. Like the scene package, every function returns a new value.
package comic

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"comiclayers/internal/domain"
	"comiclayers/internal/scene"
)

const (
	DefaultTitle            = "My Comic"
	DefaultPanelDescription = "New panel"
)

// NewID returns a fresh identifier with the given kind prefix, e.g. "panel-…".
func NewID(kind string) string {
	return kind + "-" + uuid.NewString()
}

// New creates an empty comic with a generated id.
func New(title string) domain.Comic {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return domain.Comic{ID: NewID("comic"), Title: title, Panels: []domain.Panel{}}
}

// SetTitle renames the comic.
func SetTitle(c domain.Comic, title string) domain.Comic {
	out := c.Clone()
	out.Title = title
	return out
}

// Panel looks up a panel by id.
func Panel(c domain.Comic, id string) (domain.Panel, bool) {
	for _, p := range c.Panels {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Panel{}, false
}

// AddPanel appends an empty panel and returns it alongside the new comic.
func AddPanel(c domain.Comic, title string) (domain.Comic, domain.Panel) {
	p := domain.Panel{
		ID:          NewID("panel"),
		Title:       title,
		Description: DefaultPanelDescription,
		Elements:    []domain.Element{},
	}
	out := c.Clone()
	out.Panels = append(out.Panels, p)
	return out, p
}

// AppendScriptPanels adds one panel per non-blank line, the line becoming the
// panel description.
func AppendScriptPanels(c domain.Comic, lines []string) domain.Comic {
	out := c.Clone()
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out.Panels = append(out.Panels, domain.Panel{
			ID:          NewID("panel"),
			Description: line,
			Elements:    []domain.Element{},
		})
	}
	return out
}

// ReplacePanel swaps in p for the panel with the same id. Unknown ids leave
// the comic unchanged.
func ReplacePanel(c domain.Comic, p domain.Panel) domain.Comic {
	return UpdatePanel(c, p.ID, func(domain.Panel) domain.Panel { return p.Clone() })
}

// UpdatePanel applies fn to the panel with the given id.
func UpdatePanel(c domain.Comic, id string, fn func(domain.Panel) domain.Panel) domain.Comic {
	out := c.Clone()
	for i := range out.Panels {
		if out.Panels[i].ID == id {
			out.Panels[i] = fn(out.Panels[i])
			// identity is owned by the aggregate
			out.Panels[i].ID = id
			break
		}
	}
	return out
}

// PlaceOn attaches e to the panel with the given id.
func PlaceOn(c domain.Comic, panelID string, e domain.Element) domain.Comic {
	return UpdatePanel(c, panelID, func(p domain.Panel) domain.Panel { return scene.Place(p, e) })
}

// RemovePanel drops the panel with the given id.
func RemovePanel(c domain.Comic, id string) domain.Comic {
	out := c.Clone()
	kept := make([]domain.Panel, 0, len(out.Panels))
	for _, p := range out.Panels {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(out.Panels) {
		return out
	}
	out.Panels = kept
	return out
}

// MovePanel moves a panel to newIndex in reading order. The index is clamped
// to the valid range; unknown ids are a no-op.
func MovePanel(c domain.Comic, id string, newIndex int) domain.Comic {
	out := c.Clone()
	from := -1
	for i, p := range out.Panels {
		if p.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return out
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex >= len(out.Panels) {
		newIndex = len(out.Panels) - 1
	}
	p := out.Panels[from]
	rest := append(out.Panels[:from:from], out.Panels[from+1:]...)
	out.Panels = append(rest[:newIndex:newIndex], append([]domain.Panel{p}, rest[newIndex:]...)...)
	return out
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ExportFileName is the download name for the JSON export: the title with
// whitespace runs replaced by a hyphen.
func ExportFileName(c domain.Comic) string {
	return whitespaceRun.ReplaceAllString(c.Title, "-") + ".json"
}

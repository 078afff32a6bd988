/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package comic

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"comiclayers/internal/domain"
)

// ParseError reports persisted state that is not a well-formed Comic.
// Path locates the offending value, e.g. "panels[1].elements[0].size".
type ParseError struct {
	Path string
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "comic"
	}
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", loc, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Serialize renders the persisted form. Selection state is not written.
func Serialize(c domain.Comic) ([]byte, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize comic: %w", err)
	}
	return b, nil
}

// Deserialize parses and validates a persisted comic. Unknown fields are
// ignored; missing rotation, opacity and background take their defaults.
// Every failure is a *ParseError.
func Deserialize(b []byte) (domain.Comic, error) {
	var c domain.Comic
	if err := json.Unmarshal(b, &c); err != nil {
		return domain.Comic{}, &ParseError{Msg: "invalid JSON", Err: err}
	}
	if err := Validate(c); err != nil {
		return domain.Comic{}, err
	}
	return c, nil
}

// Validate checks the structural invariants of a comic.
func Validate(c domain.Comic) error {
	if c.ID == "" {
		return &ParseError{Path: "id", Msg: "missing id"}
	}
	seen := map[string]string{c.ID: "id"}
	claim := func(id, path string) error {
		if id == "" {
			return &ParseError{Path: path + ".id", Msg: "missing id"}
		}
		if prev, dup := seen[id]; dup {
			return &ParseError{Path: path + ".id", Msg: fmt.Sprintf("duplicate id %q (also at %s)", id, prev)}
		}
		seen[id] = path
		return nil
	}
	for i, p := range c.Panels {
		pp := fmt.Sprintf("panels[%d]", i)
		if err := claim(p.ID, pp); err != nil {
			return err
		}
		for j, e := range p.Elements {
			ep := fmt.Sprintf("%s.elements[%d]", pp, j)
			if err := claim(e.ID, ep); err != nil {
				return err
			}
			if err := validateElement(e, ep); err != nil {
				return err
			}
			if e.Type == domain.Background {
				return &ParseError{Path: ep + ".type", Msg: "background element outside the background slot"}
			}
		}
		if p.Background != nil {
			bp := pp + ".background"
			if err := claim(p.Background.ID, bp); err != nil {
				return err
			}
			if err := validateElement(*p.Background, bp); err != nil {
				return err
			}
			if p.Background.Type != domain.Background {
				return &ParseError{Path: bp + ".type", Msg: fmt.Sprintf("background slot holds a %s element", p.Background.Type)}
			}
		}
	}
	return nil
}

func validateElement(e domain.Element, path string) error {
	if !e.Type.Valid() {
		return &ParseError{Path: path + ".type", Msg: fmt.Sprintf("unknown element type %q", e.Type)}
	}
	if !(e.Size.Width > 0) || !(e.Size.Height > 0) {
		return &ParseError{Path: path + ".size", Msg: fmt.Sprintf("non-positive size %gx%g", e.Size.Width, e.Size.Height)}
	}
	if e.Opacity < 0 || e.Opacity > 1 {
		return &ParseError{Path: path + ".opacity", Msg: fmt.Sprintf("opacity %g outside [0,1]", e.Opacity)}
	}
	return nil
}

// LoadOrDefault deserializes b and falls back to a fresh comic when the
// stored state cannot be parsed. Empty input is not an error.
func LoadOrDefault(b []byte, l *slog.Logger) domain.Comic {
	if len(b) == 0 {
		return New("")
	}
	c, err := Deserialize(b)
	if err != nil {
		if l != nil {
			l.Warn("stored comic unreadable, starting fresh", slog.Any("err", err))
		}
		return New("")
	}
	return c
}

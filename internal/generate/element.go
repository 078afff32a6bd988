/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package generate

import (
	"strings"

	"comiclayers/internal/comic"
	"comiclayers/internal/domain"
)

// NewElement wraps a generated asset in a fresh element at the canvas origin.
// The z value is provisional; placing it on a panel assigns the real one.
func NewElement(a Asset, req ElementRequest) domain.Element {
	t := req.Type
	if !t.Valid() {
		t = domain.Character
	}
	return domain.Element{
		ID:       comic.NewID("element"),
		Type:     t,
		Name:     strings.TrimSpace(req.Description),
		ImageURL: a.DataURI,
		Position: domain.Position{Z: 1},
		Size:     domain.Size{Width: domain.DefaultElementWidth, Height: domain.DefaultElementHeight},
		Opacity:  domain.DefaultOpacity,
	}
}

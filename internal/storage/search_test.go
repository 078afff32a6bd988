/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"strings"
	"testing"

	"comiclayers/internal/comic"
)

func TestSearchFindsPanelText(t *testing.T) {
	root := t.TempDir()
	c := sampleComic()
	ctx := context.Background()
	if err := UpdateIndex(ctx, root, c); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	p1 := c.Panels[0]

	res, err := Search(ctx, root, SearchQuery{Text: "lamp"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Type != "prop" || res[0].PanelID != p1.ID {
		t.Fatalf("lamp results = %+v", res)
	}
	if res[0].Text != "a glowing lamp" {
		t.Fatalf("text = %q", res[0].Text)
	}

	res, err = Search(ctx, root, SearchQuery{Text: "garden", Types: []string{"background"}})
	if err != nil || len(res) != 1 || !strings.HasSuffix(res[0].Path, "element:element-sky") {
		t.Fatalf("background results = %+v, %v", res, err)
	}

	res, err = Search(ctx, root, SearchQuery{PanelID: c.Panels[1].ID})
	if err != nil {
		t.Fatal(err)
	}
	// second panel carries only its title and the default description
	if len(res) != 2 {
		t.Fatalf("panel filter results = %+v", res)
	}
}

func TestUpdateIndexReplacesDocuments(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	c := sampleComic()
	if err := UpdateIndex(ctx, root, c); err != nil {
		t.Fatal(err)
	}
	c = comic.RemovePanel(c, c.Panels[0].ID)
	if err := UpdateIndex(ctx, root, c); err != nil {
		t.Fatal(err)
	}
	res, err := Search(ctx, root, SearchQuery{Text: "rusty"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Fatalf("stale documents remain: %+v", res)
	}
	if _, err := Search(ctx, " ", SearchQuery{}); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

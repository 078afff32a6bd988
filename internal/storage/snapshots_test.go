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
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"comiclayers/internal/scene"
)

func TestSnapshotsCRUD(t *testing.T) {
	root := t.TempDir()
	ws := &Workspace{Root: root, ManifestPath: filepath.Join(root, ManifestFileName)}
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if blob, _, err := GetLatestSnapshot(ctx, ws, "panel-1"); err != nil || blob != nil {
		t.Fatalf("empty history = %q, %v", blob, err)
	}
	if err := SaveSnapshot(ctx, ws, "panel-1", []byte("hello"), base); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	blob, ts, err := GetLatestSnapshot(ctx, ws, "panel-1")
	if err != nil || string(blob) != "hello" || !ts.Equal(base) {
		t.Fatalf("GetLatestSnapshot got %q at %v err %v", string(blob), ts, err)
	}
	for i := 0; i < 5; i++ {
		if err := SaveSnapshot(ctx, ws, "panel-1", []byte{byte('a' + i)}, base.Add(time.Duration(i+1)*time.Millisecond)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	if err := SaveSnapshot(ctx, ws, "panel-2", []byte("other"), base); err != nil {
		t.Fatal(err)
	}
	list, err := ListSnapshots(ctx, ws, "panel-1", 10)
	if err != nil || len(list) != 6 {
		t.Fatalf("ListSnapshots got %d err %v", len(list), err)
	}
	if string(list[0].Blob) != "e" {
		t.Fatalf("newest first expected, got %q", list[0].Blob)
	}
	n, err := PruneOldSnapshots(ctx, ws, "panel-1", 3)
	if err != nil || n != 3 {
		t.Fatalf("PruneOldSnapshots = %d, %v", n, err)
	}
	list, err = ListSnapshots(ctx, ws, "panel-1", 10)
	if err != nil || len(list) != 3 {
		t.Fatalf("ListSnapshots after prune got %d err %v", len(list), err)
	}
	if other, _ := ListSnapshots(ctx, ws, "panel-2", 10); len(other) != 1 {
		t.Fatalf("prune leaked into another panel: %d", len(other))
	}
}

func TestAutosavePanelRoundTrip(t *testing.T) {
	ws, err := Init(t.TempDir(), sampleComic())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	p := ws.Comic.Panels[0]
	if _, ok, err := LatestPanel(ctx, ws, p.ID); ok || err != nil {
		t.Fatalf("unexpected snapshot: %v %v", ok, err)
	}
	if err := AutosavePanel(ctx, ws, p); err != nil {
		t.Fatalf("AutosavePanel: %v", err)
	}
	moved := scene.Move(p, "element-lamp", 300, 10)
	if err := AutosavePanel(ctx, ws, moved); err != nil {
		t.Fatalf("AutosavePanel: %v", err)
	}
	got, ok, err := LatestPanel(ctx, ws, p.ID)
	if err != nil || !ok {
		t.Fatalf("LatestPanel: %v %v", ok, err)
	}
	if !reflect.DeepEqual(got, moved) {
		t.Fatalf("restored panel differs:\n got %+v\nwant %+v", got, moved)
	}
}

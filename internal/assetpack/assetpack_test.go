/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package assetpack

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, p string, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestImportNamesAndDedup(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "Knight.PNG")
	writeFile(t, src, "first")

	ref, err := Import(root, src)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ref != "assets/Knight.png" {
		t.Fatalf("ref = %q", ref)
	}
	again, err := Import(root, src)
	if err != nil || again != ref {
		t.Fatalf("identical import = %q, %v", again, err)
	}

	writeFile(t, src, "second")
	other, err := Import(root, src)
	if err != nil {
		t.Fatalf("import changed: %v", err)
	}
	if other != "assets/Knight-1.png" {
		t.Fatalf("collision ref = %q", other)
	}
	b, _ := os.ReadFile(filepath.Join(root, "assets", "Knight-1.png"))
	if string(b) != "second" {
		t.Fatalf("content = %q", b)
	}
}

func TestImportRejectsNonImages(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, src, "x")
	if _, err := Import(t.TempDir(), src); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

func TestExportAndInstall(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "assets", "sky.png"), "sky")
	writeFile(t, filepath.Join(src, "assets", "chars", "knight.png"), "knight")
	zipPath := filepath.Join(t.TempDir(), "pack.zip")

	n, err := Export(src, zipPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d files", n)
	}

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "assets", "sky.png"), "mine")
	got, err := Install(dst, zipPath)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if got != 1 {
		t.Fatalf("installed %d files, want 1", got)
	}
	b, _ := os.ReadFile(filepath.Join(dst, "assets", "sky.png"))
	if string(b) != "mine" {
		t.Fatalf("existing file overwritten: %q", b)
	}
	b, _ = os.ReadFile(filepath.Join(dst, "assets", "chars", "knight.png"))
	if string(b) != "knight" {
		t.Fatalf("knight = %q", b)
	}
}

func TestInstallRejectsTraversal(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("../escape.png")
	_, _ = w.Write([]byte("x"))
	_ = zw.Close()
	_ = f.Close()

	root := t.TempDir()
	if _, err := Install(root, zipPath); err == nil {
		t.Fatal("expected error for escaping entry")
	}
	if _, err := os.Stat(filepath.Join(root, "escape.png")); !os.IsNotExist(err) {
		t.Fatalf("file escaped assets dir: %v", err)
	}
}

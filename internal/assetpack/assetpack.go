/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package assetpack moves local artwork in and out of a workspace's assets
// folder: importing single image files and zipping the folder for sharing.
package assetpack

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	applog "comiclayers/internal/log"
	"comiclayers/internal/storage"
)

const manifestName = "assetpack.manifest.txt"

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

// ErrUnsupported is returned for files that are not a known image type.
var ErrUnsupported = errors.New("unsupported image type")

// Import copies the image at src into <root>/assets and returns the
// workspace-relative reference ("assets/<name>") to store on an element.
// An identical file already in the folder is reused; a different file with
// the same name gets a numeric suffix.
func Import(root, src string) (string, error) {
	l := applog.WithOperation(applog.WithComponent("assetpack"), "import").With(slog.String("src", src))
	if strings.TrimSpace(root) == "" {
		return "", errors.New("root is required")
	}
	ext := strings.ToLower(filepath.Ext(src))
	if !imageExts[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, filepath.Base(src))
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	dir := filepath.Join(root, storage.AssetsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure assets dir: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	for i := 0; ; i++ {
		name := stem + ext
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		target := filepath.Join(dir, name)
		existing, err := os.ReadFile(target)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return "", fmt.Errorf("write asset: %w", err)
			}
			l.Info("asset imported", slog.String("name", name), slog.Int("bytes", len(data)))
			return path.Join(storage.AssetsDirName, name), nil
		case err != nil:
			return "", err
		case bytes.Equal(existing, data):
			l.Debug("asset already present", slog.String("name", name))
			return path.Join(storage.AssetsDirName, name), nil
		}
	}
}

// Export zips the workspace's assets folder into destZip and returns the
// number of files written. Entries keep their "assets/..." paths.
func Export(root, destZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("assetpack"), "export").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return 0, errors.New("root is required")
	}
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination is required")
	}
	dir := filepath.Join(root, storage.AssetsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure assets dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZip)
	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	manifest := fmt.Sprintf("Comic Layers asset pack\nCreated: %s\n", time.Now().UTC().Format(time.RFC3339))
	w, err := zw.Create(manifestName)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, manifest); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}

	added := 0
	err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(fw, f); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return 0, fmt.Errorf("build zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("asset pack exported", slog.Int("files", added), slog.String("zip", destZip))
	return added, nil
}

// Install extracts a pack into the workspace's assets folder. Files that
// already exist are skipped and not counted. Entries outside assets/ are
// placed under it; entries escaping the folder are rejected.
func Install(root, packZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("assetpack"), "install").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return 0, errors.New("root is required")
	}
	if strings.TrimSpace(packZip) == "" {
		return 0, errors.New("pack path is required")
	}
	dir := filepath.Join(root, storage.AssetsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure assets dir: %w", err)
	}
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	installed := 0
	for _, f := range r.File {
		if f.Name == manifestName || f.FileInfo().IsDir() {
			continue
		}
		rel := strings.TrimPrefix(path.Clean("/"+f.Name), "/")
		rel = strings.TrimPrefix(rel, storage.AssetsDirName+"/")
		if rel == "" || rel == "." || strings.HasPrefix(f.Name, "../") || strings.Contains(f.Name, "/../") {
			return installed, fmt.Errorf("invalid entry %q", f.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return installed, err
		}
		if err := extract(f, target); err != nil {
			return installed, err
		}
		installed++
	}
	l.Info("asset pack installed", slog.Int("files", installed))
	return installed, nil
}

func extract(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"comiclayers/internal/comic"
	"comiclayers/internal/domain"
	applog "comiclayers/internal/log"
)

const (
	ManifestFileName = "comic.json"
	BackupsDirName   = "backups"
	AssetsDirName    = "assets"
	ExportsDirName   = "exports"
)

var standardSubDirs = []string{
	AssetsDirName,
	ExportsDirName,
	BackupsDirName,
}

// Workspace is a comic opened from disk.
// Root is the directory containing comic.json and the subfolders.
type Workspace struct {
	Root         string
	ManifestPath string
	Comic        domain.Comic
	// Recovered is set when Open had to fall back to a backup.
	Recovered bool
}

// Init creates a new workspace at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the comic transactionally.
func Init(root string, c domain.Comic) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	ws := &Workspace{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Comic:        c,
	}
	if err := Save(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Open loads an existing workspace from root.
// If comic.json cannot be read or is not a well-formed comic, the latest backup is tried.
func Open(root string) (*Workspace, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	mpath := filepath.Join(root, ManifestFileName)
	b, err := os.ReadFile(mpath)
	if err == nil {
		var c domain.Comic
		if c, err = comic.Deserialize(b); err == nil {
			return &Workspace{Root: root, ManifestPath: mpath, Comic: c}, nil
		}
	}
	l.Warn("comic.json unusable, trying latest backup", slog.Any("err", err))
	c, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open %s: %w; backup attempt: %v", ManifestFileName, err, berr)
	}
	l.Info("recovered from backup", slog.String("comic", c.ID))
	return &Workspace{Root: root, ManifestPath: mpath, Comic: c, Recovered: true}, nil
}

// Save writes ws.Comic to disk with transactional semantics
// and a timestamped backup of the previous document (if present).
func Save(ws *Workspace) error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	if ws.Root == "" || ws.ManifestPath == "" {
		return errors.New("invalid Workspace: missing paths")
	}
	data, err := comic.Serialize(ws.Comic)
	if err != nil {
		return fmt.Errorf("marshal comic: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(ws.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	if _, statErr := os.Stat(ws.ManifestPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bname := fmt.Sprintf("%s.%s.bak", ManifestFileName, stamp)
		if cerr := copyFile(ws.ManifestPath, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current comic: %w", cerr)
		}
	}

	// write to a temp file in the same directory, then rename over the target
	dir := filepath.Dir(ws.ManifestPath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", ManifestFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp comic: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(ws.ManifestPath); err == nil {
		_ = os.Remove(ws.ManifestPath)
	}
	if rerr := os.Rename(temp, ws.ManifestPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace comic: %w", rerr)
	}
	return nil
}

// SaveAs writes the comic to a new root folder, scaffolding structure if needed, and updates the handle.
func SaveAs(ws *Workspace, newRoot string) error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(newRoot, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	ws.Root = newRoot
	ws.ManifestPath = filepath.Join(newRoot, ManifestFileName)
	return Save(ws)
}

// AutosaveCrashSnapshot writes the in-memory comic next to the backups without
// touching comic.json, so a crash never clobbers the last good save.
func AutosaveCrashSnapshot(ws *Workspace) (string, error) {
	if ws == nil || ws.Root == "" {
		return "", errors.New("invalid Workspace")
	}
	data, err := comic.Serialize(ws.Comic)
	if err != nil {
		return "", fmt.Errorf("marshal comic: %w", err)
	}
	bdir := filepath.Join(ws.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", ManifestFileName, stamp))
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup tries the timestamped backups newest first and returns
// the first one that is a well-formed comic.
func openFromLatestBackup(root string) (domain.Comic, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return domain.Comic{}, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return domain.Comic{}, errors.New("no backups found")
	}
	// timestamp in name yields lexicographic order
	sort.Sort(sort.Reverse(sort.StringSlice(candidates)))
	var lastErr error
	for _, p := range candidates {
		b, err := os.ReadFile(p)
		if err != nil {
			lastErr = fmt.Errorf("read backup: %w", err)
			continue
		}
		c, err := comic.Deserialize(b)
		if err != nil {
			lastErr = fmt.Errorf("parse backup %s: %w", filepath.Base(p), err)
			continue
		}
		return c, nil
	}
	return domain.Comic{}, lastErr
}

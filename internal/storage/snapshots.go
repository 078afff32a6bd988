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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"comiclayers/internal/domain"
	applog "comiclayers/internal/log"
)

// DefaultSnapshotsKept is how many autosaves per panel AutosavePanel retains.
const DefaultSnapshotsKept = 20

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(panel_id, ts, blob) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, blob FROM snapshots WHERE panel_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, blob FROM snapshots WHERE panel_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE panel_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE panel_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// Snapshot is one stored state of a panel.
type Snapshot struct {
	TS   time.Time
	Blob []byte
}

// SaveSnapshot persists a panel snapshot blob with a timestamp.
func SaveSnapshot(ctx context.Context, ws *Workspace, panelID string, blob []byte, ts time.Time) error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertSnapshotSQL, panelID, ts.UTC().UnixNano(), blob)
	return err
}

// GetLatestSnapshot returns the latest snapshot blob for a panel or nil if none.
func GetLatestSnapshot(ctx context.Context, ws *Workspace, panelID string) ([]byte, time.Time, error) {
	if ws == nil {
		return nil, time.Time{}, errors.New("nil Workspace")
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer func() { _ = db.Close() }()
	var ts int64
	var blob []byte
	err = db.QueryRowContext(ctx, selectLatestSnapshotSQL, panelID).Scan(&ts, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return blob, time.Unix(0, ts).UTC(), nil
}

// ListSnapshots returns up to limit most recent snapshots for a panel.
func ListSnapshots(ctx context.Context, ws *Workspace, panelID string, limit int) ([]Snapshot, error) {
	if ws == nil {
		return nil, errors.New("nil Workspace")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSnapshotsSQL, panelID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var ts int64
		var blob []byte
		if err := rows.Scan(&ts, &blob); err != nil {
			return nil, err
		}
		out = append(out, Snapshot{TS: time.Unix(0, ts).UTC(), Blob: blob})
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps at most keepLast snapshots for the panel and deletes older ones.
func PruneOldSnapshots(ctx context.Context, ws *Workspace, panelID string, keepLast int) (int64, error) {
	if ws == nil {
		return 0, errors.New("nil Workspace")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldSnapshotsSQL, panelID, panelID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AutosavePanel stores p as JSON and trims the panel's history to DefaultSnapshotsKept.
func AutosavePanel(ctx context.Context, ws *Workspace, p domain.Panel) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal panel: %w", err)
	}
	if err := SaveSnapshot(ctx, ws, p.ID, blob, time.Now()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	n, err := PruneOldSnapshots(ctx, ws, p.ID, DefaultSnapshotsKept)
	if err != nil {
		return err
	}
	applog.WithOperation(applog.WithComponent("storage"), "autosave").DebugContext(ctx, "panel autosaved", slog.Int64("pruned", n))
	return nil
}

// LatestPanel decodes the newest autosave of a panel. ok is false when none exists.
func LatestPanel(ctx context.Context, ws *Workspace, panelID string) (domain.Panel, bool, error) {
	blob, _, err := GetLatestSnapshot(ctx, ws, panelID)
	if err != nil || blob == nil {
		return domain.Panel{}, false, err
	}
	var p domain.Panel
	if err := json.Unmarshal(blob, &p); err != nil {
		return domain.Panel{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return p, true, nil
}

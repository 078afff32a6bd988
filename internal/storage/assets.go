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
	"errors"
	"fmt"
	"time"

	"comiclayers/internal/generate"
)

// language=SQL
// dialect=SQLite
const upsertAssetSQL = `INSERT INTO assets(key, mime, data_uri, size, created_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET mime=excluded.mime, data_uri=excluded.data_uri, size=excluded.size, created_at=excluded.created_at`

// language=SQL
// dialect=SQLite
const selectAssetSQL = `SELECT mime, data_uri, size FROM assets WHERE key = ?`

// language=SQL
// dialect=SQLite
const pruneAssetsSQL = `DELETE FROM assets WHERE created_at < ?`

// AssetCache is the persistent cache of generated images, backed by the
// workspace index. It satisfies generate.AssetStore.
type AssetCache struct {
	db  *sql.DB
	now func() time.Time
}

var _ generate.AssetStore = (*AssetCache)(nil)

// OpenAssetCache opens the workspace index for asset caching. Close releases it.
func OpenAssetCache(root string) (*AssetCache, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	return &AssetCache{db: db, now: time.Now}, nil
}

func (a *AssetCache) Close() error { return a.db.Close() }

// GetAsset returns the cached asset for key; ok is false on a miss.
func (a *AssetCache) GetAsset(ctx context.Context, key string) (generate.Asset, bool, error) {
	var out generate.Asset
	err := a.db.QueryRowContext(ctx, selectAssetSQL, key).Scan(&out.MIMEType, &out.DataURI, &out.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return generate.Asset{}, false, nil
	}
	if err != nil {
		return generate.Asset{}, false, fmt.Errorf("read asset: %w", err)
	}
	out.Key = key
	return out, true, nil
}

// PutAsset stores or replaces the asset for key.
func (a *AssetCache) PutAsset(ctx context.Context, key string, as generate.Asset) error {
	if _, err := a.db.ExecContext(ctx, upsertAssetSQL, key, as.MIMEType, as.DataURI, as.Size, a.now().UTC().UnixNano()); err != nil {
		return fmt.Errorf("write asset: %w", err)
	}
	return nil
}

// Prune removes assets stored before cutoff and reports how many went.
func (a *AssetCache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, pruneAssetsSQL, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

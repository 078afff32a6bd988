/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"comiclayers/internal/comic"
	"comiclayers/internal/storage"
)

// ExportJSON writes the serialized comic into outDir using the title-derived
// download name and returns the file path.
func ExportJSON(ws *storage.Workspace, outDir string) (string, error) {
	if ws == nil {
		return "", errors.New("workspace is nil")
	}
	b, err := comic.Serialize(ws.Comic)
	if err != nil {
		return "", err
	}
	outDir = resolveOut(ws, outDir, "json")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	path := filepath.Join(outDir, comic.ExportFileName(ws.Comic))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write json: %w", err)
	}
	return path, nil
}

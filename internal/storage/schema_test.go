/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"testing"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"comiclayers/internal/comic"
	"comiclayers/internal/domain"
)

func validateAgainstSchema(t *testing.T, doc []byte) *gojsonschema.Result {
	t.Helper()
	schemaBytes, err := os.ReadFile(filepath.Join("..", "..", "docs", "comic.schema.json"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaBytes), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	return result
}

func TestManifestConformsToSchema(t *testing.T) {
	cases := map[string]domain.Comic{
		"empty":  comic.New(""),
		"sample": sampleComic(),
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			ws, err := Init(t.TempDir(), c)
			if err != nil {
				t.Fatalf("Init error: %v", err)
			}
			data, err := os.ReadFile(ws.ManifestPath)
			if err != nil {
				t.Fatalf("read manifest: %v", err)
			}
			result := validateAgainstSchema(t, data)
			if !result.Valid() {
				for _, e := range result.Errors() {
					t.Logf("schema error: %s", e)
				}
				t.Fatalf("manifest does not conform to schema")
			}
		})
	}
}

func TestSchemaRejectsBackgroundInElements(t *testing.T) {
	doc := `{"id":"comic-1","title":"x","panels":[{"id":"panel-1","elements":[
		{"id":"e1","type":"background","imageUrl":"","position":{"x":0,"y":0,"z":1},"size":{"width":1,"height":1}}]}]}`
	if validateAgainstSchema(t, []byte(doc)).Valid() {
		t.Fatalf("schema accepted a background among layered elements")
	}
}

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
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchLimit bounds concurrent requests in GenerateBatch.
const DefaultBatchLimit = 2

// Result is the outcome of one request in a batch.
type Result struct {
	Request ElementRequest
	Asset   Asset
	Err     error
}

// GenerateBatch runs the requests concurrently, at most limit at a time, and
// returns one Result per request in input order. A failing request never
// cancels its siblings.
func (c *Client) GenerateBatch(ctx context.Context, creds Credentials, reqs []ElementRequest, limit int) []Result {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			a, err := c.GenerateElement(ctx, creds, r)
			results[i] = Result{Request: r, Asset: a, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

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
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Classifier maps a non-2xx upstream response to a Kind.
type Classifier func(status int, body []byte) Kind

// exhaustionSignatures are matched case-insensitively against the diagnostic
// entries of a 5xx body.
var exhaustionSignatures = []string{"cuda out of memory", "out of memory"}

// Classify is the default Classifier. A 5xx whose JSON body carries a
// resource-exhaustion warning is the only transient outcome; everything else
// is terminal.
func Classify(status int, body []byte) Kind {
	switch {
	case status >= 500 && resourceExhausted(body):
		return ResourceExhausted
	case status == http.StatusUnauthorized:
		return InvalidCredential
	case status == http.StatusServiceUnavailable:
		return ServiceBusy
	case status == http.StatusRequestTimeout:
		return RequestTimeout
	}
	return GenerationFailed
}

// resourceExhausted decodes body as the upstream diagnostic document
// ({"error": ..., "warnings": [...]}) and looks for an exhaustion signature.
// Bodies that are not JSON never count.
func resourceExhausted(body []byte) bool {
	var diag struct {
		Error    any `json:"error"`
		Warnings any `json:"warnings"`
	}
	if err := json.Unmarshal(body, &diag); err != nil {
		return false
	}
	for _, v := range []any{diag.Warnings, diag.Error} {
		for _, s := range flatten(v) {
			low := strings.ToLower(s)
			for _, sig := range exhaustionSignatures {
				if strings.Contains(low, sig) {
					return true
				}
			}
		}
	}
	return false
}

func flatten(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, x := range t {
			out = append(out, flatten(x)...)
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

// classifyTransport maps a failed round trip (no response) to a Kind.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return RequestTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return RequestTimeout
	}
	return GenerationFailed
}

// upstreamDetail extracts a readable message from an error body.
func upstreamDetail(body []byte) string {
	var doc struct {
		Error any `json:"error"`
	}
	if json.Unmarshal(body, &doc) == nil {
		if parts := flatten(doc.Error); len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512] + "…"
	}
	return s
}

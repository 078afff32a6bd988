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
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   Kind
	}{
		{500, `{"warnings":["CUDA out of memory"]}`, ResourceExhausted},
		{500, `{"error":"CUDA out of memory. Tried to allocate 2.00 GiB"}`, ResourceExhausted},
		{502, `{"warnings":[["nested", "Out Of Memory"]]}`, ResourceExhausted},
		{503, `{"warnings":["CUDA out of memory"]}`, ResourceExhausted},
		{500, `CUDA out of memory`, GenerationFailed}, // not JSON
		{500, `{"warnings":["slow"]}`, GenerationFailed},
		{401, `{"warnings":["CUDA out of memory"]}`, InvalidCredential}, // only 5xx retries
		{503, `{"error":"Model is loading"}`, ServiceBusy},
		{408, ``, RequestTimeout},
		{404, `{"error":"not found"}`, GenerationFailed},
	}
	for _, tc := range cases {
		if got := Classify(tc.status, []byte(tc.body)); got != tc.want {
			t.Fatalf("Classify(%d, %s) = %v, want %v", tc.status, tc.body, got, tc.want)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTransport(t *testing.T) {
	if k := classifyTransport(fmt.Errorf("post: %w", context.DeadlineExceeded)); k != RequestTimeout {
		t.Fatalf("deadline = %v", k)
	}
	if k := classifyTransport(&net.OpError{Op: "dial", Err: timeoutErr{}}); k != RequestTimeout {
		t.Fatalf("net timeout = %v", k)
	}
	if k := classifyTransport(errors.New("connection refused")); k != GenerationFailed {
		t.Fatalf("refused = %v", k)
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(ServiceBusy, imageInstance, 503, "", nil))
	if !errors.Is(err, ErrServiceBusy) || errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("errors.Is mismatch for %v", err)
	}
	var ge *Error
	if !errors.As(err, &ge) || ge.Title == "" || ge.Type == "" || ge.Instance != imageInstance {
		t.Fatalf("problem fields not filled: %+v", ge)
	}
}

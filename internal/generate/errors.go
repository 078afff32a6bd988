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
	"fmt"
	"net/http"
)

// Kind classifies a generation outcome.
type Kind int

const (
	KindUnknown Kind = iota
	// ResourceExhausted is the upstream's transient out-of-memory signal and
	// the only kind that is retried. Callers never see it: an exhausted retry
	// budget surfaces as ServiceUnavailable.
	ResourceExhausted
	MissingCredential
	InvalidCredential
	ServiceBusy
	RequestTimeout
	ServiceUnavailable
	GenerationFailed
)

func (k Kind) String() string {
	switch k {
	case ResourceExhausted:
		return "resource_exhausted"
	case MissingCredential:
		return "missing_credential"
	case InvalidCredential:
		return "invalid_credential"
	case ServiceBusy:
		return "service_busy"
	case RequestTimeout:
		return "request_timeout"
	case ServiceUnavailable:
		return "service_unavailable"
	case GenerationFailed:
		return "generation_failed"
	}
	return "unknown"
}

// Error is a typed generation failure shaped like an RFC 7807 problem
// document so a caller can show Title/Detail directly.
type Error struct {
	Kind     Kind
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("generate: %s", e.Title)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, which makes the sentinels below
// usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingCredential  = &Error{Kind: MissingCredential}
	ErrInvalidCredential  = &Error{Kind: InvalidCredential}
	ErrServiceBusy        = &Error{Kind: ServiceBusy}
	ErrRequestTimeout     = &Error{Kind: RequestTimeout}
	ErrServiceUnavailable = &Error{Kind: ServiceUnavailable}
	ErrGenerationFailed   = &Error{Kind: GenerationFailed}
)

type problem struct {
	title  string
	detail string
	status int
}

var problems = map[Kind]problem{
	MissingCredential:  {"Missing API Token", "Please set your Hugging Face API token in the settings or environment.", http.StatusUnauthorized},
	InvalidCredential:  {"Invalid API Token", "The provided Hugging Face API token is invalid. Please check your settings.", http.StatusUnauthorized},
	ServiceBusy:        {"Service Busy", "The generation service is currently busy. Please try again in a few moments.", http.StatusServiceUnavailable},
	RequestTimeout:     {"Request Timeout", "The request timed out. The service might be experiencing high load.", http.StatusRequestTimeout},
	ServiceUnavailable: {"Service Unavailable", "The generation service ran out of resources on every attempt. Please try again later.", http.StatusServiceUnavailable},
	GenerationFailed:   {"Generation Failed", "An unexpected error occurred while generating the image.", http.StatusInternalServerError},
	ResourceExhausted:  {"Resource Exhausted", "The generation service ran out of accelerator memory.", http.StatusInternalServerError},
}

// newError fills the problem fields for k. A non-zero status or non-empty
// detail overrides the defaults.
func newError(k Kind, instance string, status int, detail string, cause error) *Error {
	p, ok := problems[k]
	if !ok {
		p = problems[GenerationFailed]
	}
	if status == 0 {
		status = p.status
	}
	if detail == "" {
		detail = p.detail
	}
	return &Error{
		Kind:     k,
		Type:     "urn:comiclayers:error:" + k.String(),
		Title:    p.title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
		Err:      cause,
	}
}

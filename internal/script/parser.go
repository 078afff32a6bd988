/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	reSentenceEnd = regexp.MustCompile(`[.!?]`)
	rePanel       = regexp.MustCompile(`^(?i)\s*Panel\s*(\d+)\s*:?\s*(.*)$`)
	reTag         = regexp.MustCompile(`(?i)@([a-z0-9_\-]+)`) // tags like @tag-name
)

// Format turns raw generated text into a panel script: the text is split on
// sentence terminators, blank pieces dropped, the first n kept and each
// labelled "Panel i: ". Panels are separated by a blank line.
func Format(text string, n int) string {
	if n <= 0 {
		return ""
	}
	var out []string
	for _, s := range reSentenceEnd.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, fmt.Sprintf("Panel %d: %s", len(out)+1, s))
		if len(out) == n {
			break
		}
	}
	return strings.Join(out, "\n\n")
}

// Lines returns the non-blank lines of a script, each of which becomes one
// panel description.
func Lines(script string) []string {
	var out []string
	for _, l := range strings.Split(script, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimSpace(l))
		}
	}
	return out
}

// Parse reads a panel script into beats.
// Supported syntax:
//   - "Panel N: text" starts beat N (case-insensitive, colon optional).
//   - Lines indented by 2+ spaces continue the previous beat.
//   - Lines starting with ';' are author notes and skipped.
//   - Any other non-blank line is a beat of its own, numbered after the previous one.
//
// Out-of-sequence or repeated panel numbers are reported but kept.
func Parse(input string) ([]Beat, []Error) {
	var beats []Beat
	var errs []Error
	seen := map[int]int{}

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	var last *Beat

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")

		if strings.HasPrefix(line, "  ") && last != nil {
			if cont := strings.TrimSpace(line); cont != "" {
				last.Text += " " + cont
				last.Tags = mergeTags(last.Tags, extractTags(cont))
			}
			continue
		}

		trim := strings.TrimSpace(line)
		if trim == "" {
			last = nil
			continue
		}
		if strings.HasPrefix(trim, ";") {
			last = nil
			continue
		}

		b := Beat{LineNo: lineNo}
		if m := rePanel.FindStringSubmatch(trim); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				errs = append(errs, Error{Line: lineNo, Column: 1, Message: fmt.Sprintf("bad panel number %q", m[1])})
				n = len(beats) + 1
			}
			b.Number = n
			b.Text = strings.TrimSpace(m[2])
			if want := len(beats) + 1; n != want {
				errs = append(errs, Error{Line: lineNo, Column: 1, Message: fmt.Sprintf("panel %d out of sequence (expected %d)", n, want)})
			}
		} else {
			b.Number = 1
			if len(beats) > 0 {
				b.Number = beats[len(beats)-1].Number + 1
			}
			b.Text = trim
		}
		if prev, dup := seen[b.Number]; dup {
			errs = append(errs, Error{Line: lineNo, Column: 1, Message: fmt.Sprintf("panel %d already defined on line %d", b.Number, prev)})
		} else {
			seen[b.Number] = lineNo
		}
		b.Tags = extractTags(b.Text)
		beats = append(beats, b)
		last = &beats[len(beats)-1]
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: err.Error()})
	}
	return beats, errs
}

// Descriptions renders beats back into "Panel N: text" panel descriptions.
func Descriptions(beats []Beat) []string {
	out := make([]string, 0, len(beats))
	for _, b := range beats {
		out = append(out, fmt.Sprintf("Panel %d: %s", b.Number, b.Text))
	}
	return out
}

func extractTags(s string) []string {
	found := reTag.FindAllStringSubmatch(s, -1)
	if len(found) == 0 {
		return nil
	}
	var out []string
	for _, f := range found {
		if t := strings.ToLower(strings.TrimSpace(f[1])); t != "" {
			out = append(out, t)
		}
	}
	return mergeTags(nil, out)
}

func mergeTags(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	m := map[string]struct{}{}
	for _, t := range a {
		m[t] = struct{}{}
	}
	for _, t := range b {
		m[t] = struct{}{}
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

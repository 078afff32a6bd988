/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// Beat is one panel's worth of script text.
// Number is the label from "Panel N:" or, for unlabelled lines, the running count.
// Tags are lower-cased @mentions found in the text (characters, props, places).
type Beat struct {
	Number int
	Text   string
	Tags   []string
	LineNo int // 1-based starting line number in the source
}

// Error represents a parse problem with position context.
// Parsing never aborts on an Error; they are advisory.
type Error struct {
	Line    int
	Column  int
	Message string
}

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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"comiclayers/internal/domain"
	"comiclayers/internal/prompt"
)

// Model selects the upstream image model.
type Model string

const (
	StableDiffusion   Model = "STABLE_DIFFUSION"
	StableDiffusionXL Model = "STABLE_DIFFUSION_XL"
	Kandinsky         Model = "KANDINSKY"

	DefaultModel = StableDiffusion
	ScriptModel  = "gpt2"
)

var modelRepos = map[Model]string{
	StableDiffusion:   "stabilityai/stable-diffusion-2",
	StableDiffusionXL: "stabilityai/stable-diffusion-xl-base-1.0",
	Kandinsky:         "kandinsky-community/kandinsky-2-2",
}

// Repo returns the hosted model path; unknown models fall back to the default.
func (m Model) Repo() string {
	if r, ok := modelRepos[m]; ok {
		return r
	}
	return modelRepos[DefaultModel]
}

// ParseModel accepts a model name in any case; empty input yields the default.
func ParseModel(s string) (Model, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultModel, nil
	}
	m := Model(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := modelRepos[m]; !ok {
		return "", fmt.Errorf("unknown model %q", s)
	}
	return m, nil
}

const (
	DefaultGuidanceScale = 7.5
	DefaultSteps         = 50
	DefaultWidth         = 512
	DefaultHeight        = 512
)

// Options tune one image request. Zero values mean "use the default".
type Options struct {
	Model          Model
	Style          prompt.Style
	NegativePrompt string
	GuidanceScale  float64
	Steps          int
	Width          int
	Height         int
	Seed           int64
}

// ElementRequest asks for one asset.
type ElementRequest struct {
	Description string
	Type        domain.ElementType
	Options     Options
}

// withDefaults resolves every zero option. A zero seed becomes a random one,
// so repeating an unseeded request yields a new image.
func (r ElementRequest) withDefaults() ElementRequest {
	o := r.Options
	if _, ok := modelRepos[o.Model]; !ok {
		o.Model = DefaultModel
	}
	if o.Style == "" {
		o.Style = prompt.DefaultStyle
	}
	if o.GuidanceScale <= 0 {
		o.GuidanceScale = DefaultGuidanceScale
	}
	if o.Steps <= 0 {
		o.Steps = DefaultSteps
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Seed == 0 {
		o.Seed = RandomSeed()
	}
	if !r.Type.Valid() {
		r.Type = domain.Character
	}
	r.Options = o
	return r
}

// RandomSeed returns a positive seed in the int32 range.
func RandomSeed() int64 {
	return int64(rand.Int32N(math.MaxInt32)) + 1
}

type imageParameters struct {
	NegativePrompt    string  `json:"negative_prompt"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Seed              int64   `json:"seed"`
}

type imageBody struct {
	Inputs     string          `json:"inputs"`
	Parameters imageParameters `json:"parameters"`
}

// body builds the wire payload. r must already have defaults applied.
func (r ElementRequest) body() imageBody {
	pos, neg := prompt.Compose(r.Description, r.Type, r.Options.Style, r.Options.NegativePrompt)
	return imageBody{
		Inputs: pos,
		Parameters: imageParameters{
			NegativePrompt:    neg,
			GuidanceScale:     r.Options.GuidanceScale,
			NumInferenceSteps: r.Options.Steps,
			Width:             r.Options.Width,
			Height:            r.Options.Height,
			Seed:              r.Options.Seed,
		},
	}
}

// fingerprint identifies a request for caching and de-duplication: the model
// plus the exact wire payload.
func fingerprint(model Model, b imageBody) string {
	raw, _ := json.Marshal(b)
	sum := sha256.Sum256(append([]byte(model.Repo()+"\n"), raw...))
	return hex.EncodeToString(sum[:])
}

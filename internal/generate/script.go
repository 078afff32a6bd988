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
	"log/slog"
	"strings"

	applog "comiclayers/internal/log"
	"comiclayers/internal/prompt"
	"comiclayers/internal/script"
)

// DefaultScriptPanels is used when a ScriptRequest leaves Panels unset.
const DefaultScriptPanels = 4

// ScriptRequest asks the text model for a panel-by-panel script.
type ScriptRequest struct {
	Idea       string
	Panels     int
	Characters []string
	Tone       string
}

type scriptParameters struct {
	MaxLength          int     `json:"max_length"`
	NumReturnSequences int     `json:"num_return_sequences"`
	Temperature        float64 `json:"temperature"`
	TopP               float64 `json:"top_p"`
	RepetitionPenalty  float64 `json:"repetition_penalty"`
}

type scriptBody struct {
	Inputs     string           `json:"inputs"`
	Parameters scriptParameters `json:"parameters"`
}

// GenerateScript asks the text model for a script and returns it formatted as
// "Panel N: ..." lines separated by blank lines. Script requests are not
// retried; failures use the same error kinds as image requests.
func (c *Client) GenerateScript(ctx context.Context, creds Credentials, req ScriptRequest) (string, error) {
	l := applog.WithOperation(c.log, "generate_script")
	if strings.TrimSpace(creds.Token) == "" {
		return "", newError(MissingCredential, scriptInstance, 0, "", nil)
	}
	if req.Panels <= 0 {
		req.Panels = DefaultScriptPanels
	}
	body := scriptBody{
		Inputs: prompt.ScriptPrompt(req.Idea, req.Panels, req.Characters, req.Tone),
		Parameters: scriptParameters{
			MaxLength:          req.Panels * 50,
			NumReturnSequences: 1,
			Temperature:        0.8,
			TopP:               0.9,
			RepetitionPenalty:  1.2,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", newError(GenerationFailed, scriptInstance, 0, "", err)
	}
	if err := c.wait(ctx); err != nil {
		return "", newError(classifyTransport(err), scriptInstance, 0, "", err)
	}
	data, _, err := c.post(ctx, c.cfg.BaseURL+"/"+ScriptModel, creds.Token, payload, c.cfg.ScriptTimeout, scriptInstance)
	if err != nil {
		// scripts are not retried, so exhaustion is reported as unavailability
		var ge *Error
		if errors.As(err, &ge) && ge.Kind == ResourceExhausted {
			err = newError(ServiceUnavailable, scriptInstance, 0, "", ge)
		}
		l.ErrorContext(ctx, "script generation failed", slog.Any("err", err))
		return "", err
	}
	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", newError(GenerationFailed, scriptInstance, 0, "Invalid response format from the script generation API.", err)
	}
	text := ""
	if len(out) > 0 {
		text = out[0].GeneratedText
	}
	formatted := script.Format(text, req.Panels)
	l.Info("script generated", slog.Int("panels", len(script.Lines(formatted))))
	return formatted, nil
}

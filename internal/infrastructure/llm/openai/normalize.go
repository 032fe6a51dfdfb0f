package openai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// normalizeCompletionResponse extracts the answer text from the several
// response shapes compatible providers return. Shapes are tried in a
// fixed priority order:
//
//  1. choices[0].message.content
//  2. choices[0].text
//  3. content
//  4. text
//  5. candidates[0].content.parts[].text
//
// An empty result after trimming is a failure.
func normalizeCompletionResponse(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
		Content    string `json:"content"`
		Text       string `json:"text"`
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	if len(body.Choices) > 0 {
		if text := strings.TrimSpace(body.Choices[0].Message.Content); text != "" {
			return text, nil
		}
		if text := strings.TrimSpace(body.Choices[0].Text); text != "" {
			return text, nil
		}
	}
	if text := strings.TrimSpace(body.Content); text != "" {
		return text, nil
	}
	if text := strings.TrimSpace(body.Text); text != "" {
		return text, nil
	}
	if len(body.Candidates) > 0 {
		var parts []string
		for _, p := range body.Candidates[0].Content.Parts {
			if t := strings.TrimSpace(p.Text); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}

	return "", fmt.Errorf("completion response has no usable text")
}

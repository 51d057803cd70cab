package service

import (
	"strings"

	"neurocase/internal/model"
)

// effectivePrompt builds the prompt for a regeneration request: the stored
// base prompt plus any additional user text, both trimmed, joined by a
// single space.
func effectivePrompt(basePrompt, additional string) string {
	base := strings.TrimSpace(basePrompt)
	extra := strings.TrimSpace(additional)
	if extra == "" {
		return base
	}
	if base == "" {
		return extra
	}
	return base + " " + extra
}

// videoPrompt resolves the prompt for a per-timepoint video request:
// the image's own prompt, else the case's generated prompt, else the base
// prompt, else empty — the first non-empty value wins.
func videoPrompt(c *model.Case, tp model.Timepoint) string {
	if img, ok := c.Images[tp]; ok && img.PromptUsed != "" {
		return img.PromptUsed
	}
	if c.GeneratedPrompt != "" {
		return c.GeneratedPrompt
	}
	return c.BasePrompt
}

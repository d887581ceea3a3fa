// Package llm implements the text-classification collaborator on top of
// an OpenAI-compatible chat completion API. It is used for two batch
// call purposes: turning listing titles into canonical search queries,
// and tagging listings with categorical resale flags.
package llm

import "strings"

// Config holds the LLM client configuration.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// cleanMarkdownWrapper strips a markdown code fence that some models
// insist on wrapping JSON responses in.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}

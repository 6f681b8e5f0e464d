package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"erpai/internal/config"
)

// Completer is a single-turn text completion client.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// NewClient builds a completion client from config. An empty provider
// disables narration and returns nil.
func NewClient(cfg config.LLMConfig) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		return nil, nil
	}
	httpClient := &http.Client{Timeout: 15 * time.Second}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	switch provider {
	case "openai":
		return &OpenAIClient{APIBase: cfg.APIBase, APIKey: cfg.APIKey, Model: cfg.Model, HTTPClient: httpClient}, nil
	case "anthropic":
		return &AnthropicClient{APIBase: cfg.APIBase, APIKey: cfg.APIKey, Model: cfg.Model, HTTPClient: httpClient}, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", provider)
}

// Narrator renders report data into a prompt template and asks the model for
// a prose summary. The template references the data as {report_data}.
type Narrator struct {
	Client    Completer
	MaxTokens int
}

func (n *Narrator) Narrate(ctx context.Context, promptTemplate string, data any) (string, error) {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	prompt := strings.ReplaceAll(promptTemplate, "{report_data}", SanitizePromptInput(string(encoded)))
	maxTokens := n.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	out, err := n.Client.Complete(ctx, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// injectionPatterns matches common prompt injection attempts in external data.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?above\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?previous`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?previous`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)system\s*:\s*you`),
	regexp.MustCompile(`(?i)<<\s*SYS\s*>>`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`(?i)\[/INST\]`),
	regexp.MustCompile(`(?i)<\|im_start\|>`),
	regexp.MustCompile(`(?i)<\|im_end\|>`),
}

// SanitizePromptInput cleans report data before including it in LLM prompts.
// It strips control characters and common prompt injection patterns.
func SanitizePromptInput(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	for _, re := range injectionPatterns {
		cleaned = re.ReplaceAllString(cleaned, "[FILTERED]")
	}

	return cleaned
}

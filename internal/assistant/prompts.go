package assistant

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"taskpilot/internal/daemon"
	"taskpilot/internal/recovery"
	"taskpilot/pkg/types"
)

const systemPrompt = "You are a thoughtful productivity assistant for a personal task manager. " +
	"Answer with valid JSON only, without commentary."

// SuggestionMessages builds the chat for task suggestions based on free-form context.
func SuggestionMessages(topic string) []daemon.Message {
	user := fmt.Sprintf(`Based on the following context, suggest 3-5 tasks that would be helpful.

Context: %s

Return a JSON array. Each element is an object with:
- "title": string
- "description": string
- "priority": number (1-5)
- "estimated_time": string (e.g. "2 hours")`, strings.TrimSpace(topic))
	return []daemon.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
}

// AnalysisMessages builds the chat for pattern analysis. Every task is
// included in the user message.
func AnalysisMessages(ts []types.Task) []daemon.Message {
	body, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		body = []byte(fmt.Sprint(ts))
	}
	keys := make([]string, len(recovery.Categories))
	for i, c := range recovery.Categories {
		keys[i] = fmt.Sprintf("%q", c)
	}
	user := fmt.Sprintf(`I am analyzing ALL %d tasks below. Consider every one of them.

Tasks:
%s

Identify patterns and return a JSON object with exactly these keys: %s.
Each value is a short paragraph of insights.`, len(ts), body, strings.Join(keys, ", "))
	return []daemon.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
}

package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildPrompt renders the user prompt for a task from its title, description
// and the well-known input keys (deliverables, acceptance_criteria, project_context).
func BuildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n\nDescription:\n%s\n\n", req.Title, req.Description)

	if items := stringList(req.Input["deliverables"]); len(items) > 0 {
		b.WriteString("Expected Deliverables:\n")
		writeBullets(&b, items)
	}

	if items := stringList(req.Input["acceptance_criteria"]); len(items) > 0 {
		b.WriteString("Acceptance Criteria:\n")
		writeBullets(&b, items)
	}

	if ctx, ok := req.Input["project_context"].(map[string]any); ok {
		b.WriteString("Project Context:\n")
		fmt.Fprintf(&b, "- Type: %s\n", stringOr(ctx["project_type"], "unknown"))
		fmt.Fprintf(&b, "- Complexity: %s\n", stringOr(ctx["complexity"], "unknown"))
		fmt.Fprintf(&b, "- Key Requirements: %s\n\n", strings.Join(stringList(ctx["key_requirements"]), ", "))
	}

	b.WriteString("Please complete this task following your expertise and output format.\n")
	b.WriteString("Provide specific, actionable deliverables in JSON format.")

	return b.String()
}

// ParseOutput turns a model response into a task output map. A JSON object
// (optionally inside a markdown code fence) is used as-is; anything else is
// wrapped as {"response": text}.
func ParseOutput(text string) map[string]any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return map[string]any{}
	}

	body := trimmed
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		if i := strings.LastIndex(body, "```"); i >= 0 {
			body = body[:i]
		}
		body = strings.TrimSpace(body)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(body), &out); err == nil && out != nil {
		return out
	}
	return map[string]any{"response": trimmed}
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func stringList(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

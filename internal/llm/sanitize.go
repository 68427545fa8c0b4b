package llm

import "strings"

// StripThinkingTags removes <think>...</think> blocks from LLM output.
// Reasoning models such as deepseek-r1 wrap their reasoning in these tags.
func StripThinkingTags(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = strings.TrimSpace(s[:start])
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// StripMarkdownFences removes the outermost ``` fence pair, if any.
func StripMarkdownFences(s string) string {
	lines := strings.Split(s, "\n")

	start := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			start = i + 1
			break
		}
	}

	end := len(lines)
	for i := len(lines) - 1; i >= start; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			end = i
			break
		}
	}

	if start == 0 && end == len(lines) {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// ExtractJSON pulls the JSON document out of a model reply: thinking blocks
// and code fences are dropped, then any prose around the outermost object or
// array is trimmed.
func ExtractJSON(s string) string {
	s = StripMarkdownFences(StripThinkingTags(s))
	if s == "" || s[0] == '{' || s[0] == '[' {
		return s
	}
	open := strings.IndexAny(s, "{[")
	if open == -1 {
		return s
	}
	closer := "}"
	if s[open] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < open {
		return s
	}
	return s[open : end+1]
}

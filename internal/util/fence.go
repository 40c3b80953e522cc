package util

import "strings"

// StripCodeFence removes a surrounding Markdown code fence (``` or ```json)
// from a model reply. Text without a leading fence is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	body := strings.TrimPrefix(s, "```")
	newline := strings.IndexByte(body, '\n')
	if newline < 0 {
		return s
	}
	body = strings.TrimSpace(body[newline+1:])
	body = strings.TrimSuffix(body, "```")

	return strings.TrimSpace(body)
}

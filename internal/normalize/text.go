package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	markup     = regexp.MustCompile(`<[a-zA-Z/!][^>]*>|&[#a-zA-Z0-9]+;`)
)

// cleanText trims s and strips HTML markup that quotes copied from article
// pages tend to carry. Escaped markup decodes to tags on one pass, so passes
// repeat until the text stops shrinking, which makes cleanText idempotent.
func cleanText(s string) string {
	s = collapse(s)
	for markup.MatchString(s) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err != nil {
			break
		}
		next := collapse(doc.Text())
		if len(next) >= len(s) {
			break
		}
		s = next
	}
	return s
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// unwrapModelOutput removes the wrapping LLM answers carry around their JSON:
// a reasoning block closed by </think> and Markdown code fences.
func unwrapModelOutput(s string) string {
	if idx := strings.LastIndex(s, "</think>"); idx >= 0 {
		s = s[idx+len("</think>"):]
	}

	if strings.Contains(s, "```") {
		for _, part := range strings.Split(s, "```") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "json") {
				s = strings.TrimSpace(part[len("json"):])
				break
			}
			if strings.HasPrefix(part, "{") || strings.HasPrefix(part, "[") {
				s = part
				break
			}
		}
	}

	return strings.TrimSpace(s)
}

// extractJSONObject returns the span between the first '{' and the last '}'.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// Package detect implements the creator-detection cascade: text
// normalization, scope gating, exact and fuzzy alias matching, and the
// orchestrator that composes them with the LLM fallback.
package detect

import "strings"

// Normalize lowercases, trims, collapses internal whitespace, and strips
// runs of trailing sentence punctuation. Idempotent: Normalize(Normalize(s))
// == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	lowered := strings.ToLower(strings.TrimSpace(text))
	collapsed := strings.Join(strings.Fields(lowered), " ")

	return strings.TrimRight(collapsed, "!?.,;: ")
}

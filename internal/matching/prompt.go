// Package matching implements the content-embedding pipeline and hybrid
// similarity search for lost and found posts: fingerprint-based staleness
// detection, the embedding refresh job, and vector + geo ranked search.
package matching

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// PromptVersion identifies the enriched prompt template. It is folded into the
// content fingerprint, so bumping it invalidates every stored embedding and
// forces a full re-embed. The index path and the query path must always run
// the same version or similarity scores across the two become meaningless.
const PromptVersion = "v1"

// prompt is the single template shared by indexing and querying.
func prompt(subject, details, marks string) string {
	var b strings.Builder
	b.WriteString("A personal item: ")
	b.WriteString(strings.TrimSpace(subject))
	if details = strings.TrimSpace(details); details != "" {
		b.WriteString(". Details: ")
		b.WriteString(details)
	}
	if marks = strings.TrimSpace(marks); marks != "" {
		b.WriteString(". Distinctive marks: ")
		b.WriteString(marks)
	}
	b.WriteString(".")
	return b.String()
}

// IndexPrompt builds the embedding input for a post's matchable fields.
func IndexPrompt(itemName, description, distinctiveMarks string) string {
	return prompt(itemName, description, distinctiveMarks)
}

// QueryPrompt builds the embedding input for a free-text search query,
// substituting the raw query text as the subject of the same template.
func QueryPrompt(text string) string {
	return prompt(text, "", "")
}

// Fingerprint returns a deterministic SHA-256 hex digest of a post's matchable
// text fields plus the prompt template version. Absent distinctive marks and an
// empty string hash identically: both produce the same embedding input.
func Fingerprint(itemName, description, distinctiveMarks string) string {
	h := sha256.Sum256([]byte(PromptVersion + "\x1f" + itemName + "\x1f" + description + "\x1f" + distinctiveMarks))
	return fmt.Sprintf("%x", h)
}

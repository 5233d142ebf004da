// Package filter implements the attachment matching engine.
package filter

import (
	"path"
	"strings"

	"tgfetch/internal/model"
)

// Reason is a machine-readable code explaining a filter decision.
type Reason string

// Decision reasons.
const (
	ReasonAccepted          Reason = "accepted"
	ReasonNoAttachment      Reason = "no_attachment"
	ReasonExtensionMismatch Reason = "extension_mismatch"
	ReasonTooLarge          Reason = "too_large"
	ReasonKeywordMismatch   Reason = "keyword_mismatch"
)

// Rules is the resolved filter configuration for a run.
// Every field is optional; a message must satisfy all present
// predicates. Extensions and Keywords are expected lowercase.
type Rules struct {
	Extensions []string
	MaxSize    int64 // bytes; 0 means unbounded
	Keywords   []string
}

// Accept decides whether a message's attachment should be downloaded.
// It is a pure function: no I/O, deterministic for given inputs.
func Accept(msg model.Message, rules Rules) (bool, Reason) {
	att := msg.Attachment
	if att == nil {
		return false, ReasonNoAttachment
	}

	if len(rules.Extensions) > 0 && !contains(rules.Extensions, Ext(att.FileName)) {
		return false, ReasonExtensionMismatch
	}

	if rules.MaxSize > 0 && att.Size > rules.MaxSize {
		return false, ReasonTooLarge
	}

	if len(rules.Keywords) > 0 {
		haystack := strings.ToLower(att.FileName + " " + msg.Text)
		if !anyKeyword(haystack, rules.Keywords) {
			return false, ReasonKeywordMismatch
		}
	}

	return true, ReasonAccepted
}

// Ext returns the lowercase extension of name without the leading dot,
// or an empty string if name has none.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func anyKeyword(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

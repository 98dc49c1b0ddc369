package entity

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	RoleButton = "button"
	RoleInput  = "input"
	RoleLink   = "link"
)

// PageElement is one interactive element reported by the page serializer.
// Hint is advisory context (input type, href) and never used for matching.
type PageElement struct {
	Role string `json:"role"`
	Text string `json:"text"`
	Hint string `json:"hint,omitempty"`
}

func (e PageElement) String() string {
	if e.Role == RoleInput && e.Hint != "" {
		return fmt.Sprintf("%s(%s) %q", e.Role, e.Hint, e.Text)
	}
	return fmt.Sprintf("%s %q", e.Role, e.Text)
}

// PageSnapshot is a read-only view of the page at one step boundary.
// It is produced by the serializer, diffed by the executor and folded
// into the trace afterwards; nothing mutates it.
type PageSnapshot struct {
	URL         string        `json:"url"`
	Elements    []PageElement `json:"elements"`
	VisibleText []string      `json:"visible_text"`
}

// Key returns a stable digest of the snapshot's URL and element set,
// suitable for loop-window signatures.
func (s PageSnapshot) Key() string {
	h := sha1.New()
	fmt.Fprintln(h, s.URL)
	for _, e := range s.Elements {
		fmt.Fprintln(h, e.Role, e.Text, e.Hint)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HasPasswordInput reports whether the snapshot contains a password-type
// input. Used by the orchestrator's multi-step login heuristic.
func (s PageSnapshot) HasPasswordInput() bool {
	for _, e := range s.Elements {
		if e.Role == RoleInput && e.Hint == "password" {
			return true
		}
	}
	return false
}

// DiffElements compares two snapshots and returns the element summaries
// that appeared in and disappeared from `after` relative to `before`.
func DiffElements(before, after PageSnapshot) (appeared, disappeared []string) {
	beforeSet := make(map[string]bool, len(before.Elements))
	for _, e := range before.Elements {
		beforeSet[e.String()] = true
	}
	afterSet := make(map[string]bool, len(after.Elements))
	for _, e := range after.Elements {
		afterSet[e.String()] = true
	}

	for _, e := range after.Elements {
		if key := e.String(); !beforeSet[key] {
			appeared = append(appeared, key)
		}
	}
	for _, e := range before.Elements {
		if key := e.String(); !afterSet[key] {
			disappeared = append(disappeared, key)
		}
	}
	return appeared, disappeared
}

// Summary renders the snapshot in the text form the decision oracle
// consumes: URL, elements grouped by role, then truncated visible text.
func (s PageSnapshot) Summary(maxPerGroup, maxTextRunes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n\n", s.URL)

	b.WriteString("INTERACTIVE ELEMENTS:\n")
	if len(s.Elements) == 0 {
		b.WriteString("- (No interactive elements found)\n")
	} else {
		writeGroup(&b, "Buttons", s.groupByRole(RoleButton), maxPerGroup, false)
		writeGroup(&b, "Inputs", s.groupByRole(RoleInput), maxPerGroup, true)
		writeGroup(&b, "Links", s.groupByRole(RoleLink), maxPerGroup, false)
	}

	text := strings.Join(s.VisibleText, "\n")
	if utf8.RuneCountInString(text) > maxTextRunes {
		text = string([]rune(text)[:maxTextRunes]) + "\n... (truncated)"
	}
	fmt.Fprintf(&b, "\nVISIBLE TEXT:\n%s\n", text)

	return b.String()
}

func (s PageSnapshot) groupByRole(role string) []PageElement {
	var group []PageElement
	for _, e := range s.Elements {
		if e.Role == role {
			group = append(group, e)
		}
	}
	return group
}

func writeGroup(b *strings.Builder, title string, group []PageElement, max int, withHint bool) {
	if len(group) == 0 {
		return
	}
	if len(group) > max {
		group = group[:max]
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, e := range group {
		if withHint && e.Hint != "" {
			fmt.Fprintf(b, "  - (%s) %q\n", e.Hint, e.Text)
		} else {
			fmt.Fprintf(b, "  - %q\n", e.Text)
		}
	}
}

package local

import (
	"fmt"
	"strings"

	"github.com/sevigo/ragbench/vectorstores"
)

const maxComments = 5

// FormatChunk renders one retrieved post as a numbered prompt block.
func FormatChunk(n int, h vectorstores.Hit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chunk %d:\nTitle: %s\nSelftext: %s\nTop comments:\n", n, h.String("title"), h.String("selftext"))
	for i, c := range comments(h) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	fmt.Fprintf(&b, "Source: %s\n\n", source(h))
	return b.String()
}

// formatContext renders hits as prompt context and as one context string
// per chunk.
func formatContext(hits []vectorstores.Hit) (string, []string) {
	var b strings.Builder
	contexts := make([]string, 0, len(hits))
	for i, h := range hits {
		chunk := FormatChunk(i+1, h)
		b.WriteString(chunk)
		contexts = append(contexts, strings.TrimSpace(chunk))
	}
	return b.String(), contexts
}

// chunkText is the text embedded when a hit carries no stored vector.
func chunkText(h vectorstores.Hit) string {
	parts := []string{h.String("title"), h.String("selftext")}
	parts = append(parts, comments(h)...)
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

func comments(h vectorstores.Hit) []string {
	list, _ := h.Payload["comments"].([]any)
	if len(list) > maxComments {
		list = list[:maxComments]
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case map[string]any:
			text, _ := v["text"].(string)
			out = append(out, text)
		case string:
			out = append(out, v)
		default:
			out = append(out, "")
		}
	}
	return out
}

func source(h vectorstores.Hit) string {
	if u := h.String("url"); u != "" {
		return u
	}
	if p := h.String("permalink"); p != "" {
		return p
	}
	return "unknown"
}

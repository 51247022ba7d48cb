package schema

import "strings"

// Document is a chunk of retrieved text together with the payload stored
// next to its vector.
type Document struct {
	PageContent string
	Metadata    map[string]any
	Score       float32
}

func (d Document) String() string {
	return d.PageContent
}

func NewDocument(content string, metadata map[string]any) Document {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return Document{
		PageContent: content,
		Metadata:    metadata,
	}
}

// Contents returns the page content of every document in order.
func Contents(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.PageContent
	}
	return out
}

// JoinContents renders documents as a single context block, one document per
// paragraph.
func JoinContents(docs []Document) string {
	return strings.Join(Contents(docs), "\n\n")
}

type ContentResponse struct {
	Choices []*ContentChoice
}

type ContentChoice struct {
	Content        string
	StopReason     string
	GenerationInfo map[string]any
}

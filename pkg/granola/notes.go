package granola

import "encoding/json"

// noteNode is one node of Granola's structured editor document. Text lives
// on leaf nodes of type "text"; everything else nests through "content".
type noteNode struct {
	Type    string     `json:"type"`
	Text    string     `json:"text"`
	Content []noteNode `json:"content"`
}

// extractStructuredNotes flattens the structured notes document to plain
// text. Unknown node types are traversed, not dropped, so new block types
// keep their text.
func extractStructuredNotes(raw json.RawMessage) string {
	var root noteNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return ""
	}

	var out []byte
	var walk func(n noteNode)
	walk = func(n noteNode) {
		if n.Type == "text" && n.Text != "" {
			if len(out) > 0 {
				out = append(out, ' ')
			}
			out = append(out, n.Text...)
			return
		}
		for _, child := range n.Content {
			walk(child)
		}
	}
	walk(root)
	return string(out)
}

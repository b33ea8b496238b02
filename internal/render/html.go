// internal/render/html.go
package render

import (
	"html"
	"sort"
	"strings"
)

// Void elements never get a closing tag.
var voidTags = map[string]bool{
	"img":   true,
	"input": true,
	"br":    true,
	"hr":    true,
}

// HTML serializes a node tree to markup the widget hydrates client-side.
// Attributes are emitted in sorted order so output is deterministic.
func HTML(n *Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	b.WriteByte('<')
	b.WriteString(n.Tag)

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(n.Attrs[k]))
		b.WriteByte('"')
	}

	if voidTags[n.Tag] {
		b.WriteString("/>")
		return
	}

	b.WriteByte('>')
	if n.Text != "" {
		b.WriteString(html.EscapeString(n.Text))
	}
	for _, child := range n.Children {
		writeNode(b, child)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}

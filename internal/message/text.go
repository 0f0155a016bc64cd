package message

import (
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"header": true, "footer": true, "aside": true, "nav": true, "blockquote": true,
	"pre": true, "ul": true, "ol": true, "table": true, "tr": true, "figure": true,
	"figcaption": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// PlainText flattens an HTML fragment into readable text. Blocks become
// paragraphs, links keep their target and scripts are dropped.
func PlainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "<") {
		return collapseLines(html.UnescapeString(raw))
	}
	doc, err := nethtml.Parse(strings.NewReader(raw))
	if err != nil {
		return collapseLines(html.UnescapeString(raw))
	}
	var b strings.Builder
	writeText(&b, doc)
	return collapseLines(b.String())
}

func writeText(b *strings.Builder, node *nethtml.Node) {
	switch node.Type {
	case nethtml.TextNode:
		b.WriteString(node.Data)
		return
	case nethtml.ElementNode:
		switch strings.ToLower(node.Data) {
		case "script", "style", "noscript", "img", "head":
			return
		case "br":
			b.WriteString("\n")
			return
		case "a":
			b.WriteString(linkText(node))
			return
		case "li":
			b.WriteString("\n- ")
			writeChildren(b, node)
			return
		}
	}

	block := node.Type == nethtml.ElementNode && blockTags[strings.ToLower(node.Data)]
	if block {
		b.WriteString("\n\n")
	}
	writeChildren(b, node)
	if block {
		b.WriteString("\n\n")
	}
}

func writeChildren(b *strings.Builder, node *nethtml.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(b, child)
	}
}

func linkText(node *nethtml.Node) string {
	var inner strings.Builder
	writeChildren(&inner, node)
	text := strings.Join(strings.Fields(inner.String()), " ")
	href := strings.TrimSpace(nodeAttr(node, "href"))
	switch {
	case href == "":
		return text
	case text == "", strings.EqualFold(text, href):
		return href
	default:
		return text + " (" + href + ")"
	}
}

func nodeAttr(node *nethtml.Node, key string) string {
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}

// collapseLines squeezes whitespace inside lines and keeps at most one blank
// line between paragraphs.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

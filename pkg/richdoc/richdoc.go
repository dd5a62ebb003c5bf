// Package richdoc builds the editor's native document tree, a plain-text
// extract and a markdown rendering from normalized page HTML.
package richdoc

import (
	"encoding/json"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Node is one node of the document tree. The shape follows ProseMirror's
// JSON format.
type Node struct {
	Type    string                 `json:"type"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []*Node                `json:"content,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
}

// Mark is inline formatting applied to a text node.
type Mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// Document is the result of Build.
type Document struct {
	Root     *Node
	JSON     []byte
	Text     string
	Markdown string
}

// Build converts normalized HTML into a document.
func Build(content string) (*Document, error) {
	root, err := html.Parse(strings.NewReader("<html><body>" + content + "</body></html>"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	body := findBody(root)
	if body == nil {
		return nil, fmt.Errorf("failed to parse content: no body")
	}

	doc := &Node{Type: "doc", Content: blocks(body)}
	if len(doc.Content) == 0 {
		doc.Content = []*Node{{Type: "paragraph"}}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertNode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to convert content to markdown: %w", err)
	}

	return &Document{
		Root:     doc,
		JSON:     data,
		Text:     PlainText(doc),
		Markdown: strings.TrimSpace(string(markdown)),
	}, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// PlainText extracts the text of a document, one line per block.
func PlainText(n *Node) string {
	var lines []string
	collectText(n, &lines)
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func collectText(n *Node, lines *[]string) {
	if isTextBlock(n.Type) {
		var b strings.Builder
		inlineText(n, &b)
		if s := strings.TrimSpace(b.String()); s != "" {
			*lines = append(*lines, s)
		}
		return
	}
	for _, c := range n.Content {
		collectText(c, lines)
	}
}

func inlineText(n *Node, b *strings.Builder) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
	case "hardBreak":
		b.WriteString(" ")
	case "status":
		if text, ok := n.Attrs["text"].(string); ok {
			b.WriteString(text)
		}
	}
	for _, c := range n.Content {
		inlineText(c, b)
	}
}

func isTextBlock(t string) bool {
	switch t {
	case "paragraph", "heading", "codeBlock", "detailsSummary":
		return true
	}
	return false
}

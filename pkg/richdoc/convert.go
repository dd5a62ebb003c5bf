package richdoc

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var markTags = map[string]string{
	"strong": "bold",
	"b":      "bold",
	"em":     "italic",
	"i":      "italic",
	"u":      "underline",
	"s":      "strike",
	"del":    "strike",
	"strike": "strike",
	"code":   "code",
	"sub":    "subscript",
	"sup":    "superscript",
}

var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "pre": true, "hr": true,
	"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true, "td": true, "th": true,
	"div": true, "details": true, "summary": true, "section": true, "article": true,
	"header": true, "footer": true, "figure": true, "dl": true, "dt": true, "dd": true,
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.Data == "img" {
		return n.Parent != nil && n.Parent.Data == "body"
	}
	return blockTags[n.Data]
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// blocks converts the children of n into block nodes. Runs of inline content
// are wrapped in paragraphs.
func blocks(n *html.Node) []*Node {
	var out []*Node
	var pending []*html.Node

	flush := func() {
		if len(pending) == 0 {
			return
		}
		var inline []*Node
		for _, p := range pending {
			inline = append(inline, inlines(p, nil)...)
		}
		pending = nil
		if inline = trimInline(inline); len(inline) > 0 {
			out = append(out, &Node{Type: "paragraph", Content: inline})
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !isBlock(c) {
			pending = append(pending, c)
			continue
		}
		flush()
		out = append(out, block(c)...)
	}
	flush()
	return out
}

// block converts one block element.
func block(n *html.Node) []*Node {
	switch n.Data {
	case "p":
		return []*Node{{Type: "paragraph", Content: trimInline(inlineChildren(n, nil))}}

	case "h1", "h2", "h3", "h4", "h5", "h6":
		level, _ := strconv.Atoi(n.Data[1:])
		return []*Node{{
			Type:    "heading",
			Attrs:   map[string]interface{}{"level": level},
			Content: trimInline(inlineChildren(n, nil)),
		}}

	case "ul":
		if attr(n, "data-type") == "taskList" {
			return []*Node{{Type: "taskList", Content: listItems(n)}}
		}
		return []*Node{{Type: "bulletList", Content: listItems(n)}}

	case "ol":
		start := 1
		if s, err := strconv.Atoi(attr(n, "start")); err == nil {
			start = s
		}
		return []*Node{{Type: "orderedList", Attrs: map[string]interface{}{"start": start}, Content: listItems(n)}}

	case "li":
		return []*Node{listItem(n)}

	case "blockquote":
		return []*Node{{Type: "blockquote", Content: nonEmpty(blocks(n))}}

	case "pre":
		return []*Node{codeBlock(n)}

	case "hr":
		return []*Node{{Type: "horizontalRule"}}

	case "img":
		return []*Node{image(n)}

	case "table":
		return []*Node{{Type: "table", Content: tableRows(n)}}

	case "div":
		if attr(n, "data-type") == "callout" {
			return []*Node{{
				Type:    "callout",
				Attrs:   map[string]interface{}{"type": attr(n, "data-callout-type")},
				Content: nonEmpty(blocks(n)),
			}}
		}
		return blocks(n)

	case "details":
		return []*Node{details(n)}

	case "summary":
		return []*Node{{Type: "detailsSummary", Content: trimInline(inlineChildren(n, nil))}}

	default:
		return blocks(n)
	}
}

func listItems(n *html.Node) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			out = append(out, listItem(c))
		}
	}
	return out
}

func listItem(n *html.Node) *Node {
	item := &Node{Type: "listItem", Content: nonEmpty(blocks(n))}
	if attr(n, "data-type") == "taskItem" {
		item.Type = "taskItem"
		item.Attrs = map[string]interface{}{"checked": attr(n, "data-checked") == "true"}
	}
	return item
}

func codeBlock(n *html.Node) *Node {
	node := &Node{Type: "codeBlock", Attrs: map[string]interface{}{"language": nil}}

	src := n
	if c := n.FirstChild; c != nil && c.Type == html.ElementNode && c.Data == "code" && c.NextSibling == nil {
		src = c
		if lang := strings.TrimPrefix(attr(c, "class"), "language-"); lang != "" {
			node.Attrs["language"] = lang
		}
	}
	if title := attr(n, "data-title"); title != "" {
		node.Attrs["title"] = title
	}

	if text := rawText(src); text != "" {
		node.Content = []*Node{{Type: "text", Text: text}}
	}
	return node
}

func rawText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func image(n *html.Node) *Node {
	attrs := map[string]interface{}{"src": attr(n, "src")}
	for _, key := range []string{"alt", "title", "width", "height"} {
		if v := attr(n, key); v != "" {
			attrs[key] = v
		}
	}
	return &Node{Type: "image", Attrs: attrs}
}

func tableRows(n *html.Node) []*Node {
	var rows []*Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				rows = append(rows, &Node{Type: "tableRow", Content: tableCells(c)})
			case "thead", "tbody", "tfoot":
				walk(c)
			}
		}
	}
	walk(n)
	return rows
}

func tableCells(tr *html.Node) []*Node {
	var cells []*Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		cell := &Node{Type: "tableCell", Content: nonEmpty(blocks(c))}
		if c.Data == "th" {
			cell.Type = "tableHeader"
		}
		for _, key := range []string{"colspan", "rowspan"} {
			if v, err := strconv.Atoi(attr(c, key)); err == nil && v > 1 {
				if cell.Attrs == nil {
					cell.Attrs = map[string]interface{}{}
				}
				cell.Attrs[key] = v
			}
		}
		cells = append(cells, cell)
	}
	return cells
}

func details(n *html.Node) *Node {
	node := &Node{Type: "details"}
	content := &Node{Type: "detailsContent"}

	var rest []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "summary" {
			node.Content = append(node.Content, block(c)...)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "summary" {
			continue
		}
		rest = append(rest, blocksOf(c)...)
	}
	content.Content = nonEmpty(rest)
	node.Content = append(node.Content, content)
	return node
}

// blocksOf converts a single node as if it were the only child of a block.
func blocksOf(n *html.Node) []*Node {
	if isBlock(n) {
		return block(n)
	}
	inline := trimInline(inlines(n, nil))
	if len(inline) == 0 {
		return nil
	}
	return []*Node{{Type: "paragraph", Content: inline}}
}

// nonEmpty guarantees block containers hold at least one paragraph.
func nonEmpty(nodes []*Node) []*Node {
	if len(nodes) == 0 {
		return []*Node{{Type: "paragraph"}}
	}
	return nodes
}

func inlineChildren(n *html.Node, marks []Mark) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, inlines(c, marks)...)
	}
	return out
}

// inlines converts an inline node and its descendants, carrying the marks
// of enclosing formatting elements.
func inlines(n *html.Node, marks []Mark) []*Node {
	switch n.Type {
	case html.TextNode:
		text := collapseSpace(n.Data)
		if text == "" {
			return nil
		}
		return []*Node{{Type: "text", Text: text, Marks: marks}}
	case html.ElementNode:
	default:
		return nil
	}

	switch n.Data {
	case "br":
		return []*Node{{Type: "hardBreak"}}
	case "img":
		return []*Node{image(n)}
	case "a":
		link := Mark{Type: "link", Attrs: map[string]interface{}{"href": attr(n, "href")}}
		for _, key := range []string{"data-page-id", "data-slug-id"} {
			if v := attr(n, key); v != "" {
				link.Attrs[strings.TrimPrefix(key, "data-")] = v
			}
		}
		return inlineChildren(n, withMark(marks, link))
	case "span":
		if attr(n, "data-type") == "status" {
			return []*Node{{
				Type:  "status",
				Attrs: map[string]interface{}{"text": rawText(n), "color": attr(n, "data-color")},
			}}
		}
	}

	if mark, ok := markTags[n.Data]; ok {
		return inlineChildren(n, withMark(marks, Mark{Type: mark}))
	}
	// Blocks nested in inline context contribute their text.
	return inlineChildren(n, marks)
}

func withMark(marks []Mark, m Mark) []Mark {
	for _, existing := range marks {
		if existing.Type == m.Type {
			return marks
		}
	}
	out := make([]Mark, len(marks), len(marks)+1)
	copy(out, marks)
	return append(out, m)
}

// trimInline drops leading and trailing whitespace from a run of inline
// nodes and merges adjacent text with identical marks.
func trimInline(nodes []*Node) []*Node {
	var merged []*Node
	for _, n := range nodes {
		if last := len(merged) - 1; last >= 0 && n.Type == "text" &&
			merged[last].Type == "text" && sameMarks(merged[last].Marks, n.Marks) {
			text := merged[last].Text + n.Text
			merged[last] = &Node{Type: "text", Text: strings.ReplaceAll(text, "  ", " "), Marks: n.Marks}
			continue
		}
		merged = append(merged, n)
	}

	for len(merged) > 0 {
		first := merged[0]
		if first.Type != "text" {
			break
		}
		first.Text = strings.TrimLeft(first.Text, " ")
		if first.Text != "" {
			break
		}
		merged = merged[1:]
	}
	for len(merged) > 0 {
		last := merged[len(merged)-1]
		if last.Type != "text" {
			break
		}
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			break
		}
		merged = merged[:len(merged)-1]
	}
	return merged
}

func sameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || fmt.Sprint(a[i].Attrs) != fmt.Sprint(b[i].Attrs) {
			return false
		}
	}
	return true
}

// collapseSpace folds runs of whitespace into a single space.
func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

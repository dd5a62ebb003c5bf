package markup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element names of the storage format.
const (
	tagStructuredMacro = "ac:structured-macro"
	tagLegacyMacro     = "ac:macro"
	tagParameter       = "ac:parameter"
	tagRichTextBody    = "ac:rich-text-body"
	tagPlainTextBody   = "ac:plain-text-body"
	tagLink            = "ac:link"
	tagLinkBody        = "ac:link-body"
	tagPlainLinkBody   = "ac:plain-text-link-body"
	tagImage           = "ac:image"
	tagEmoticon        = "ac:emoticon"
	tagTaskList        = "ac:task-list"
	tagTask            = "ac:task"
	tagTaskStatus      = "ac:task-status"
	tagTaskBody        = "ac:task-body"
	tagLayout          = "ac:layout"
	tagLayoutCell      = "ac:layout-cell"
	tagPlaceholder     = "ac:placeholder"

	tagPage       = "ri:page"
	tagAttachment = "ri:attachment"
	tagURL        = "ri:url"
	tagUser       = "ri:user"
)

// isStorageElement reports whether the element belongs to the ac: or ri:
// namespaces.
func isStorageElement(n *html.Node) bool {
	return n.Type == html.ElementNode &&
		(strings.HasPrefix(n.Data, "ac:") || strings.HasPrefix(n.Data, "ri:"))
}

// named matches elements by tag name. Namespaced tags are matched by name
// rather than through CSS selectors, which would need every colon escaped.
func named(tags ...string) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		name := goquery.NodeName(s)
		for _, t := range tags {
			if name == t {
				return true
			}
		}
		return false
	}
}

// findAll returns matching descendants of root in reverse document order, so
// that nested elements are rewritten before the elements containing them.
func findAll(root *goquery.Selection, tags ...string) []*html.Node {
	nodes := root.Find("*").FilterFunction(named(tags...)).Nodes
	out := make([]*html.Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}

// findMacros returns structured and legacy macros with one of the names.
func findMacros(root *goquery.Selection, names ...string) []*html.Node {
	var out []*html.Node
	for _, n := range findAll(root, tagStructuredMacro, tagLegacyMacro) {
		name := macroName(n)
		for _, want := range names {
			if name == want {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

func macroName(n *html.Node) string {
	return strings.ToLower(strings.TrimSpace(attrValue(n, "ac:name")))
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// child returns the first direct child element with the tag.
func child(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

// param returns the text of the macro parameter with the given name.
func param(macro *html.Node, name string) string {
	for c := macro.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tagParameter && attrValue(c, "ac:name") == name {
			return strings.TrimSpace(textOf(c))
		}
	}
	return ""
}

// plainBody returns the text of the macro's plain-text body.
func plainBody(macro *html.Node) string {
	if body := child(macro, tagPlainTextBody); body != nil {
		return textOf(body)
	}
	return ""
}

func textOf(n *html.Node) string {
	return goquery.NewDocumentFromNode(n).Text()
}

func newElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// moveChildren appends every child of src to dst.
func moveChildren(dst, src *html.Node) {
	if src == nil {
		return
	}
	for c := src.FirstChild; c != nil; c = src.FirstChild {
		src.RemoveChild(c)
		dst.AppendChild(c)
	}
}

// replaceNode puts repl where old was and detaches old.
func replaceNode(old *html.Node, repl ...*html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	for _, r := range repl {
		parent.InsertBefore(r, old)
	}
	parent.RemoveChild(old)
}

// unwrapNode replaces n with its children.
func unwrapNode(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

func removeNode(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

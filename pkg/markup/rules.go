package markup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const defaultExpandTitle = "Click to expand..."

var calloutTypes = map[string]string{
	"info":    "info",
	"note":    "info",
	"tip":     "success",
	"warning": "warning",
	"error":   "danger",
}

// wrapperMacros only group their body and are unwrapped silently.
var wrapperMacros = map[string]bool{
	"excerpt": true,
	"section": true,
	"column":  true,
	"div":     true,
	"span":    true,
}

// reservedTargets strips authored links and images that already point at a
// pipeline target. It runs before any rule emits placeholders.
func (t *transform) reservedTargets() {
	t.body.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isReservedTarget(href) {
			t.degrade(DegradationReservedTarget, "link target %q removed", href)
			s.RemoveAttr("href")
		}
	})
	t.body.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if isReservedTarget(src) {
			t.degrade(DegradationReservedTarget, "image source %q removed", src)
			s.Remove()
		}
	})
}

func (t *transform) codeBlocks() {
	for _, m := range findMacros(t.body, "code", "code-block") {
		replaceNode(m, codeBlock(plainBody(m), param(m, "language"), param(m, "title")))
	}
}

func (t *transform) callouts() {
	for _, m := range findMacros(t.body, "info", "note", "tip", "warning", "error") {
		replaceNode(m, callout(calloutTypes[macroName(m)], m))
	}
}

func (t *transform) panels() {
	for _, m := range findMacros(t.body, "panel") {
		replaceNode(m, callout("info", m))
	}
}

func (t *transform) expands() {
	for _, m := range findMacros(t.body, "expand") {
		title := param(m, "title")
		if title == "" {
			title = defaultExpandTitle
		}

		details := newElement("details")
		summary := newElement("summary")
		summary.AppendChild(newText(title))
		details.AppendChild(summary)
		moveChildren(details, child(m, tagRichTextBody))

		replaceNode(m, details)
	}
}

func (t *transform) tableOfContents() {
	for _, m := range findMacros(t.body, "toc") {
		removeNode(m)
	}
	for _, m := range findMacros(t.body, "toc-zone") {
		unwrapBody(m)
	}
}

func (t *transform) pageLinks() {
	for _, link := range findAll(t.body, tagLink) {
		target := child(link, tagPage)
		if target == nil {
			continue
		}

		title := attrValue(target, "ri:content-title")
		if strings.TrimSpace(title) == "" {
			replaceNode(link, newText(linkText(link, "")))
			continue
		}
		if key := attrValue(target, "ri:space-key"); key != "" && !strings.EqualFold(key, t.opts.SpaceKey) {
			t.degrade(DegradationCrossSpaceLink, "link to %q in space %s replaced with text", title, key)
			replaceNode(link, newText(linkText(link, title)))
			continue
		}

		a := newElement("a", attr("href", PageRefPrefix+title))
		fillLink(a, link, title)
		replaceNode(link, a)
		t.notePageRef(title)
	}
}

func (t *transform) attachments() {
	for _, link := range findAll(t.body, tagLink) {
		target := child(link, tagAttachment)
		if target == nil {
			continue
		}
		name := attrValue(target, "ri:filename")
		if name == "" {
			replaceNode(link, newText(linkText(link, "")))
			continue
		}

		a := newElement("a", attr("href", AttachmentRefPrefix+name))
		fillLink(a, link, name)
		replaceNode(link, a)
		t.noteAttachmentRef(name)
	}

	for _, img := range findAll(t.body, tagImage) {
		target := child(img, tagAttachment)
		if target == nil {
			continue
		}
		name := attrValue(target, "ri:filename")
		if name == "" {
			removeNode(img)
			continue
		}

		replaceNode(img, image(img, AttachmentRefPrefix+name, name))
		t.noteAttachmentRef(name)
	}
}

func (t *transform) urls() {
	for _, link := range findAll(t.body, tagLink) {
		href := ""
		if target := child(link, tagURL); target != nil {
			href = attrValue(target, "ri:value")
		} else if anchor := attrValue(link, "ac:anchor"); anchor != "" && child(link, tagUser) == nil {
			href = "#" + anchor
		}
		if href == "" {
			continue
		}
		if isReservedTarget(href) {
			t.degrade(DegradationReservedTarget, "link target %q removed", href)
			replaceNode(link, newText(linkText(link, "")))
			continue
		}

		a := newElement("a", attr("href", href))
		fillLink(a, link, href)
		replaceNode(link, a)
	}

	for _, img := range findAll(t.body, tagImage) {
		target := child(img, tagURL)
		if target == nil {
			continue
		}
		src := attrValue(target, "ri:value")
		if src == "" {
			removeNode(img)
			continue
		}
		if isReservedTarget(src) {
			t.degrade(DegradationReservedTarget, "image source %q removed", src)
			removeNode(img)
			continue
		}
		replaceNode(img, image(img, src, ""))
	}
}

func (t *transform) mentions() {
	for _, link := range findAll(t.body, tagLink) {
		user := child(link, tagUser)
		if user == nil {
			continue
		}

		name := attrValue(user, "ri:username")
		if name == "" {
			name = strings.TrimPrefix(strings.TrimSpace(linkText(link, "")), "@")
		}
		if name == "" {
			name = attrValue(user, "ri:userkey")
		}
		if name == "" {
			name = attrValue(user, "ri:account-id")
		}
		replaceNode(link, newText("@"+name))
	}

	// Whatever is left has no target we understand.
	for _, link := range findAll(t.body, tagLink) {
		text := linkText(link, "")
		t.degrade(DegradationUnclassifiedLink, "link %q has no page, attachment, url or user target", text)
		if text == "" {
			removeNode(link)
			continue
		}
		replaceNode(link, newText(text))
	}
	for _, img := range findAll(t.body, tagImage) {
		removeNode(img)
	}
}

func (t *transform) emoticons() {
	for _, e := range findAll(t.body, tagEmoticon) {
		name := attrValue(e, "ac:name")
		glyph, ok := emoticonGlyph(name, attrValue(e, "ac:emoji-fallback"))
		if !ok {
			t.degrade(DegradationUnknownEmoticon, "emoticon %q replaced with %s", name, glyph)
		}
		replaceNode(e, newText(glyph))
	}
}

func (t *transform) taskLists() {
	for _, list := range findAll(t.body, tagTaskList) {
		ul := newElement("ul", attr("data-type", "taskList"))
		for c := list.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.Data != tagTask {
				continue
			}

			checked := "false"
			if status := child(c, tagTaskStatus); status != nil && strings.TrimSpace(textOf(status)) == "complete" {
				checked = "true"
			}
			li := newElement("li", attr("data-type", "taskItem"), attr("data-checked", checked))
			moveChildren(li, child(c, tagTaskBody))
			ul.AppendChild(li)
		}
		replaceNode(list, ul)
	}
}

func (t *transform) statuses() {
	for _, m := range findMacros(t.body, "status") {
		colour := strings.ToLower(param(m, "colour"))
		if colour == "" {
			colour = strings.ToLower(param(m, "color"))
		}
		title := param(m, "title")
		if title == "" {
			title = strings.ToUpper(colour)
		}

		span := newElement("span", attr("data-type", "status"))
		if colour != "" {
			span.Attr = append(span.Attr, attr("data-color", colour))
		}
		span.AppendChild(newText(title))
		replaceNode(m, span)
	}
}

func (t *transform) noFormat() {
	for _, m := range findMacros(t.body, "noformat") {
		replaceNode(m, codeBlock(plainBody(m), "", ""))
	}
}

func (t *transform) layouts() {
	for _, layout := range findAll(t.body, tagLayout) {
		cells := goquery.NewDocumentFromNode(layout).Find("*").FilterFunction(named(tagLayoutCell)).Nodes
		for _, cell := range cells {
			for c := cell.FirstChild; c != nil; c = cell.FirstChild {
				cell.RemoveChild(c)
				layout.Parent.InsertBefore(c, layout)
			}
		}
		removeNode(layout)
	}
}

// cleanup unwraps or drops every storage element the rules above did not
// consume.
func (t *transform) cleanup() {
	for _, m := range findAll(t.body, tagStructuredMacro, tagLegacyMacro) {
		name := macroName(m)
		if !wrapperMacros[name] {
			t.degrade(DegradationUnsupportedMacro, "macro %q is not supported", name)
		}
		unwrapBody(m)
	}

	for _, n := range t.body.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isStorageElement(s.Get(0))
	}).Nodes {
		if n.Parent == nil {
			continue
		}
		switch {
		case n.Data == tagPlaceholder, n.Data == tagParameter, strings.HasPrefix(n.Data, "ri:"):
			removeNode(n)
		default:
			unwrapNode(n)
		}
	}
}

// unwrapBody replaces a macro with the contents of its rich-text body, or
// removes it when it has none.
func unwrapBody(macro *html.Node) {
	body := child(macro, tagRichTextBody)
	if body == nil {
		removeNode(macro)
		return
	}
	for c := body.FirstChild; c != nil; c = body.FirstChild {
		body.RemoveChild(c)
		macro.Parent.InsertBefore(c, macro)
	}
	removeNode(macro)
}

func codeBlock(text, language, title string) *html.Node {
	pre := newElement("pre")
	if title != "" {
		pre.Attr = append(pre.Attr, attr("data-title", title))
	}
	code := newElement("code")
	if language != "" {
		code.Attr = append(code.Attr, attr("class", "language-"+strings.ToLower(language)))
	}
	code.AppendChild(newText(text))
	pre.AppendChild(code)
	return pre
}

func callout(kind string, macro *html.Node) *html.Node {
	div := newElement("div", attr("data-type", "callout"), attr("data-callout-type", kind))
	if title := param(macro, "title"); title != "" {
		p := newElement("p")
		strong := newElement("strong")
		strong.AppendChild(newText(title))
		p.AppendChild(strong)
		div.AppendChild(p)
	}
	moveChildren(div, child(macro, tagRichTextBody))
	return div
}

// image builds an <img> keeping the size and text attributes of an ac:image.
func image(img *html.Node, src, defaultAlt string) *html.Node {
	out := newElement("img", attr("src", src))

	alt := attrValue(img, "ac:alt")
	if alt == "" {
		alt = defaultAlt
	}
	if alt != "" {
		out.Attr = append(out.Attr, attr("alt", alt))
	}
	for _, key := range []string{"width", "height", "title"} {
		if v := attrValue(img, "ac:"+key); v != "" {
			out.Attr = append(out.Attr, attr(key, v))
		}
	}
	return out
}

// linkText returns the display text of an ac:link: its link body, else its
// plain-text body, else fallback.
func linkText(link *html.Node, fallback string) string {
	if body := child(link, tagLinkBody); body != nil {
		if text := strings.TrimSpace(textOf(body)); text != "" {
			return text
		}
	}
	if body := child(link, tagPlainLinkBody); body != nil {
		if text := strings.TrimSpace(textOf(body)); text != "" {
			return text
		}
	}
	return fallback
}

// fillLink moves the link body of an ac:link into a, keeping inline
// formatting, or writes the plain-text body or fallback.
func fillLink(a, link *html.Node, fallback string) {
	if body := child(link, tagLinkBody); body != nil && strings.TrimSpace(textOf(body)) != "" {
		moveChildren(a, body)
		return
	}
	a.AppendChild(newText(linkText(link, fallback)))
}

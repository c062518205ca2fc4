package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// dropTags are removed together with their content.
var dropTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "form": true, "input": true,
	"noscript": true, "object": true, "embed": true, "button": true,
	"select": true, "textarea": true, "svg": true, "template": true,
}

// divLike containers become a paragraph, or are unwrapped when they hold blocks.
var divLike = map[string]bool{
	"div": true, "section": true, "article": true, "header": true, "footer": true,
	"main": true, "aside": true, "nav": true, "blockquote": true, "center": true,
	"pre": true, "address": true, "figure": true, "table": true, "thead": true,
	"tbody": true, "tfoot": true, "tr": true, "td": true, "th": true,
	"dl": true, "dt": true, "dd": true,
}

var inlineTags = map[string]bool{
	"b": true, "strong": true, "i": true, "em": true, "u": true,
}

// textBlocks hold inline content only.
var textBlocks = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true,
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func isBlock(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && blockTags[n.Data]
}

func isList(n *html.Node) bool {
	return isElement(n, "ul") || isElement(n, "ol")
}

func isBlankText(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode && strings.TrimFunc(n.Data, unicode.IsSpace) == ""
}

func newElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// SanitizeHTML reduces arbitrary job-board HTML to paragraphs, breaks,
// bold/italic/underline, headings and lists, with no attributes. The output
// is a fixed point: sanitizing it again returns it unchanged.
func SanitizeHTML(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(input), body)
	if err != nil {
		return "<p>" + html.EscapeString(collapseSpace(strings.TrimSpace(input))) + "</p>"
	}

	root := newElement("div")
	for _, n := range nodes {
		root.AppendChild(n)
	}

	clean(root)
	liftBlocks(root)
	// Bullets are detected inside paragraphs, so loose runs are wrapped
	// first and the lists convertBullets creates are wrapped again.
	wrapLoose(root)
	convertBullets(root)
	wrapLoose(root)
	tidy(root)
	mergeLists(root)

	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		render(&b, c)
	}
	return b.String()
}

// clean removes dangerous elements, strips attributes, and reduces every
// element to the allowed set. Children are handled before their parent.
func clean(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.TextNode:
		case html.ElementNode:
			tag := c.Data
			if dropTags[tag] {
				n.RemoveChild(c)
				break
			}
			clean(c)
			c.Attr = nil
			c.Namespace = ""
			switch {
			case divLike[tag]:
				if hasBlockChild(c) {
					unwrap(c)
				} else {
					c.Data, c.DataAtom = "p", atom.P
				}
			case inlineTags[tag]:
				if hasBlockChild(c) {
					unwrap(c)
				}
			case blockTags[tag], tag == "br":
			default:
				unwrap(c)
			}
		default:
			n.RemoveChild(c)
		}
		c = next
	}
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) {
			return true
		}
	}
	return false
}

// unwrap replaces n with its children.
func unwrap(n *html.Node) {
	parent := n.Parent
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

// liftBlocks splits paragraphs and headings that ended up holding blocks.
func liftBlocks(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			liftBlocks(c)
			if textBlocks[c.Data] && hasBlockChild(c) {
				splitBlock(c)
			}
		}
		c = next
	}
}

func splitBlock(b *html.Node) {
	parent := b.Parent
	var run *html.Node
	for c := b.FirstChild; c != nil; c = b.FirstChild {
		b.RemoveChild(c)
		if isBlock(c) {
			run = nil
			parent.InsertBefore(c, b)
			continue
		}
		if run == nil {
			run = newElement(b.Data)
			parent.InsertBefore(run, b)
		}
		run.AppendChild(c)
	}
	parent.RemoveChild(b)
}

// convertBullets turns paragraphs whose lines start with a bullet glyph into
// list items. A paragraph may mix plain lines and bullet lines separated by
// <br>; plain lines stay in a paragraph.
func convertBullets(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if c.Data == "p" {
				bulletize(c)
			} else {
				convertBullets(c)
			}
		}
		c = next
	}
}

func bulletize(p *html.Node) {
	var segments [][]*html.Node
	var cur []*html.Node
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "br") {
			segments = append(segments, cur)
			cur = nil
			continue
		}
		cur = append(cur, c)
	}
	segments = append(segments, cur)

	bullets := make([]bool, len(segments))
	found := false
	for i, seg := range segments {
		bullets[i] = startsWithBullet(seg)
		found = found || bullets[i]
	}
	if !found {
		return
	}

	parent := p.Parent
	var para, list *html.Node
	for i, seg := range segments {
		for _, c := range seg {
			p.RemoveChild(c)
		}
		if bullets[i] {
			para = nil
			stripBullet(seg)
			if list == nil {
				list = newElement("ul")
				parent.InsertBefore(list, p)
			}
			li := newElement("li")
			for _, c := range seg {
				li.AppendChild(c)
			}
			list.AppendChild(li)
			continue
		}
		list = nil
		if para == nil {
			para = newElement("p")
			parent.InsertBefore(para, p)
		} else {
			para.AppendChild(newElement("br"))
		}
		for _, c := range seg {
			para.AppendChild(c)
		}
	}
	parent.RemoveChild(p)
}

// firstText returns the first text node in seg holding non-space content,
// descending into inline elements.
func firstText(seg []*html.Node) *html.Node {
	for _, n := range seg {
		if t := firstTextIn(n); t != nil {
			return t
		}
	}
	return nil
}

func firstTextIn(n *html.Node) *html.Node {
	if n.Type == html.TextNode {
		if isBlankText(n) {
			return nil
		}
		return n
	}
	if n.Type != html.ElementNode || !inlineTags[n.Data] {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstTextIn(c); t != nil {
			return t
		}
	}
	return nil
}

func startsWithBullet(seg []*html.Node) bool {
	t := firstText(seg)
	if t == nil {
		return false
	}
	_, ok := cutBullet(t.Data)
	return ok
}

func stripBullet(seg []*html.Node) {
	t := firstText(seg)
	if t == nil {
		return
	}
	if rest, ok := cutBullet(t.Data); ok {
		t.Data = rest
	}
}

// cutBullet removes a leading bullet glyph. Hyphen, asterisk and en dash only
// count when followed by a space or nothing else in the text node.
func cutBullet(s string) (string, bool) {
	t := strings.TrimLeftFunc(s, unicode.IsSpace)
	r, size := utf8.DecodeRuneInString(t)
	rest := t[size:]
	switch r {
	case '•', '·', '‣', '◦', '▪', '●':
		return strings.TrimLeftFunc(rest, unicode.IsSpace), true
	case '-', '*', '–':
		if rest == "" || unicode.IsSpace([]rune(rest)[0]) {
			return strings.TrimLeftFunc(rest, unicode.IsSpace), true
		}
	}
	return s, false
}

// wrapLoose gives every node a valid container: inline runs at the top level
// become paragraphs, stray list items get a <ul>, and list children that are
// not items are wrapped in one.
func wrapLoose(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			wrapLoose(c)
		}
	}

	switch {
	case n.Parent == nil:
		wrapRuns(n, func(c *html.Node) bool { return !isBlock(c) }, "p")
		wrapRuns(n, func(c *html.Node) bool { return isElement(c, "li") }, "ul")
	case isList(n):
		wrapRuns(n, func(c *html.Node) bool { return !isElement(c, "li") }, "li")
	}
}

// wrapRuns wraps each maximal run of children matching in into a new tag
// element. Runs of only blank text and breaks are dropped.
func wrapRuns(n *html.Node, in func(*html.Node) bool, tag string) {
	for c := n.FirstChild; c != nil; {
		if !in(c) {
			c = c.NextSibling
			continue
		}
		var run []*html.Node
		blank := true
		for c != nil && in(c) {
			run = append(run, c)
			if !isBlankText(c) && !isElement(c, "br") {
				blank = false
			}
			c = c.NextSibling
		}
		if blank {
			for _, r := range run {
				n.RemoveChild(r)
			}
			continue
		}
		wrapper := newElement(tag)
		n.InsertBefore(wrapper, run[0])
		for _, r := range run {
			n.RemoveChild(r)
			wrapper.AppendChild(r)
		}
	}
}

// tidy normalizes text and removes empty elements, bottom-up.
func tidy(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			tidy(c)
			if c.FirstChild == nil && c.Data != "br" {
				n.RemoveChild(c)
			}
		}
		c = next
	}

	mergeText(n)
	collapseBreaks(n)
	if textBlocks[n.Data] || n.Data == "li" {
		trimLeading(n)
		trimTrailing(n)
	}
	if !textBlocks[n.Data] && !inlineTags[n.Data] {
		dropBlankNearBlocks(n)
	}
}

// mergeText joins adjacent text nodes and collapses whitespace runs.
func mergeText(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			for next != nil && next.Type == html.TextNode {
				c.Data += next.Data
				after := next.NextSibling
				n.RemoveChild(next)
				next = after
			}
			c.Data = collapseSpace(c.Data)
			if c.Data == "" {
				n.RemoveChild(c)
			}
		}
		c = next
	}
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

// collapseBreaks drops blank text before a break and any break that follows
// another break.
func collapseBreaks(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if isElement(c, "br") {
			prev := c.PrevSibling
			for isBlankText(prev) {
				before := prev.PrevSibling
				n.RemoveChild(prev)
				prev = before
			}
			if isElement(prev, "br") {
				n.RemoveChild(c)
			}
		}
		c = next
	}
}

func trimLeading(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		switch {
		case c.Type == html.TextNode:
			c.Data = strings.TrimLeftFunc(c.Data, unicode.IsSpace)
			if c.Data != "" {
				return
			}
			n.RemoveChild(c)
		case isElement(c, "br"):
			n.RemoveChild(c)
		case c.Type == html.ElementNode && inlineTags[c.Data]:
			trimLeading(c)
			if c.FirstChild != nil {
				return
			}
			n.RemoveChild(c)
		default:
			return
		}
	}
}

func trimTrailing(n *html.Node) {
	for c := n.LastChild; c != nil; c = n.LastChild {
		switch {
		case c.Type == html.TextNode:
			c.Data = strings.TrimRightFunc(c.Data, unicode.IsSpace)
			if c.Data != "" {
				return
			}
			n.RemoveChild(c)
		case isElement(c, "br"):
			n.RemoveChild(c)
		case c.Type == html.ElementNode && inlineTags[c.Data]:
			trimTrailing(c)
			if c.FirstChild != nil {
				return
			}
			n.RemoveChild(c)
		default:
			return
		}
	}
}

func dropBlankNearBlocks(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if isBlankText(c) && (isBlock(c.PrevSibling) || isBlock(c.NextSibling) || isList(n)) {
			n.RemoveChild(c)
		}
		c = next
	}
}

// mergeLists joins adjacent <ul> siblings.
func mergeLists(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			mergeLists(c)
			if c.Data == "ul" && isElement(c.PrevSibling, "ul") {
				prev := c.PrevSibling
				for li := c.FirstChild; li != nil; li = c.FirstChild {
					c.RemoveChild(li)
					prev.AppendChild(li)
				}
				n.RemoveChild(c)
			}
		}
		c = next
	}
}

func render(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteString("<br>")
			return
		}
		b.WriteString("<" + n.Data + ">")
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			render(b, c)
		}
		b.WriteString("</" + n.Data + ">")
	}
}

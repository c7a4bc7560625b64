// Package htmlconv normalizes upstream announcement bodies into the
// restricted node schema the archive host accepts: no nested <div>
// forests, naked images wrapped in <figure>, and a leading image or
// figure hoisted to the front of the document.
//
// The transform is deterministic and idempotent: running it twice on its
// own output produces the same document.
package htmlconv

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"priconne-watch/internal/model"
)

// Normalize applies the full transform to an HTML fragment and returns the
// resulting fragment's inner HTML.
func Normalize(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(wrapFragment(fragment)))
	if err != nil {
		return "", err
	}
	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	stripHiddenHeader(root)
	trimWhitespace(root)
	insertBreaksBetweenDivs(root)
	unwrapDivs(root)
	wrapNakedImages(root)
	hoistLeadingImage(root)

	return root.Html()
}

func wrapFragment(fragment string) string {
	return "<html><body>" + fragment + "</body></html>"
}

// stripHiddenHeader removes a leading <h4 style="display: none"> marker
// some upstream templates emit before the real content.
func stripHiddenHeader(root *goquery.Selection) {
	first := root.Children().First()
	if first.Length() == 0 || goquery.NodeName(first) != "h4" {
		return
	}
	style, _ := first.Attr("style")
	if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
		first.Remove()
	}
}

// trimWhitespace trims leading and trailing whitespace/<br> nodes from
// root's child sequence, recursing into empty <div>/<span>/<p> wrappers
// and detaching them once childless.
func trimWhitespace(root *goquery.Selection) {
	trimLeading(root)
	trimTrailing(root)
}

func trimLeading(sel *goquery.Selection) {
	for {
		nodes := sel.Nodes
		if len(nodes) == 0 {
			return
		}
		parent := nodes[0]
		child := parent.FirstChild
		if child == nil {
			return
		}
		if isWhitespaceText(child) || isBreak(child) {
			parent.RemoveChild(child)
			continue
		}
		if isEmptiableWrapper(child) {
			wrapper := goquery.NewDocumentFromNode(child).Selection
			trimLeading(wrapper)
			trimTrailing(wrapper)
			if child.FirstChild == nil {
				parent.RemoveChild(child)
				continue
			}
		}
		return
	}
}

func trimTrailing(sel *goquery.Selection) {
	for {
		nodes := sel.Nodes
		if len(nodes) == 0 {
			return
		}
		parent := nodes[0]
		child := parent.LastChild
		if child == nil {
			return
		}
		if isWhitespaceText(child) || isBreak(child) {
			parent.RemoveChild(child)
			continue
		}
		if isEmptiableWrapper(child) {
			wrapper := goquery.NewDocumentFromNode(child).Selection
			trimLeading(wrapper)
			trimTrailing(wrapper)
			if child.FirstChild == nil {
				parent.RemoveChild(child)
				continue
			}
		}
		return
	}
}

func isWhitespaceText(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

func isBreak(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "br"
}

func isEmptiableWrapper(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "div", "span", "p":
		return true
	}
	return false
}

// endsWithLinebreak reports whether the last meaningful child of n is a
// <br> or ends with a trailing newline in its text.
func endsWithLinebreak(n *html.Node) bool {
	child := n.LastChild
	for child != nil {
		if isWhitespaceText(child) {
			child = child.PrevSibling
			continue
		}
		if isBreak(child) {
			return true
		}
		if child.Type == html.TextNode {
			return strings.HasSuffix(child.Data, "\n")
		}
		return false
	}
	return false
}

func startsWithLinebreak(n *html.Node) bool {
	child := n.FirstChild
	for child != nil {
		if isWhitespaceText(child) {
			child = child.NextSibling
			continue
		}
		if isBreak(child) {
			return true
		}
		if child.Type == html.TextNode {
			return strings.HasPrefix(child.Data, "\n")
		}
		return false
	}
	return false
}

// insertBreaksBetweenDivs inserts a <br> between adjacent block <div>
// children unless the boundary already ends/starts with a line break.
func insertBreaksBetweenDivs(root *goquery.Selection) {
	for _, parentNode := range root.Nodes {
		child := parentNode.FirstChild
		for child != nil {
			next := child.NextSibling
			if child.Type == html.ElementNode && child.Data == "div" &&
				next != nil && next.Type == html.ElementNode && next.Data == "div" {
				if !endsWithLinebreak(child) && !startsWithLinebreak(next) {
					br := &html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br}
					parentNode.InsertBefore(br, next)
				}
			}
			child = next
		}
	}
}

// unwrapDivs pulls every <div>'s children up to its parent, then removes
// the now-empty <div>.
func unwrapDivs(root *goquery.Selection) {
	for {
		var found *html.Node
		var walk func(n *html.Node)
		walk = func(n *html.Node) {
			if found != nil {
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "div" {
					found = c
					return
				}
				walk(c)
				if found != nil {
					return
				}
			}
		}
		for _, n := range root.Nodes {
			walk(n)
			if found != nil {
				break
			}
		}
		if found == nil {
			return
		}
		pullChildren(found)
	}
}

// pullChildren moves all of n's children to be siblings of n in n's
// parent, in place of n, then removes n.
func pullChildren(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	next := n.NextSibling
	for child := n.FirstChild; child != nil; {
		moved := child
		child = child.NextSibling
		n.RemoveChild(moved)
		if next == nil {
			parent.AppendChild(moved)
		} else {
			parent.InsertBefore(moved, next)
		}
	}
	parent.RemoveChild(n)
}

// wrapNakedImages wraps every <img> that is not already inside a <figure>
// in a <figure><figcaption/></figure>.
func wrapNakedImages(root *goquery.Selection) {
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		imgNode := img.Nodes[0]
		if imgNode.Parent != nil && imgNode.Parent.Data == "figure" {
			return
		}
		figure := &html.Node{Type: html.ElementNode, Data: "figure", DataAtom: atom.Figure}
		figcaption := &html.Node{Type: html.ElementNode, Data: "figcaption", DataAtom: atom.Figcaption}

		parent := imgNode.Parent
		if parent == nil {
			return
		}
		parent.InsertBefore(figure, imgNode)
		parent.RemoveChild(imgNode)
		figure.AppendChild(imgNode)
		figure.AppendChild(figcaption)
	})
}

// hoistLeadingImage moves the first <img> or <figure> found by following
// the leftmost child chain from root to be root's first child.
func hoistLeadingImage(root *goquery.Selection) {
	if len(root.Nodes) == 0 {
		return
	}
	rootNode := root.Nodes[0]

	var found *html.Node
	node := rootNode.FirstChild
	for node != nil {
		if node.Type == html.ElementNode && (node.Data == "img" || node.Data == "figure") {
			found = node
			break
		}
		if node.Type == html.ElementNode {
			node = node.FirstChild
			continue
		}
		node = node.NextSibling
	}
	if found == nil || found == rootNode.FirstChild {
		return
	}
	parent := found.Parent
	parent.RemoveChild(found)
	rootNode.InsertBefore(found, rootNode.FirstChild)
}

// eventTimeLayout is the timestamp format the upstream CMS renders event
// schedules in.
const eventTimeLayout = "2006/01/02 15:04"

// ExtractEvents scans an announcement body for schedule blocks: a text
// node naming a period (ending in 期間, with an optional leading ■
// bullet) immediately followed by a start～end timestamp range. Nodes
// that fail to parse are skipped rather than aborting the scan.
func ExtractEvents(fragment string) []model.Event {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(wrapFragment(fragment)))
	if err != nil {
		return nil
	}
	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var texts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				texts = append(texts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range root.Nodes {
		walk(n)
	}

	var events []model.Event
	for i := 0; i+1 < len(texts); i++ {
		name := texts[i]
		if !strings.HasSuffix(name, "期間") {
			continue
		}
		name = strings.TrimSpace(strings.TrimPrefix(name, "■"))
		start, end, ok := parseEventRange(texts[i+1])
		if !ok {
			continue
		}
		events = append(events, model.Event{Title: name, Start: start, End: end})
	}
	return events
}

// parseEventRange splits a "start～end" schedule line and parses both
// sides with eventTimeLayout.
func parseEventRange(s string) (start, end time.Time, ok bool) {
	parts := strings.SplitN(s, "～", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(eventTimeLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(eventTimeLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// AppendExtras serializes extra as a fenced code block at the end of body,
// for human traceability of source-specific fields that have no place in
// the normalized document.
func AppendExtras(body string, extraJSON []byte) string {
	if len(extraJSON) == 0 {
		return body
	}
	var b bytes.Buffer
	b.WriteString(body)
	b.WriteString("\n<pre><code>")
	b.Write(extraJSON)
	b.WriteString("</code></pre>")
	return b.String()
}

package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// renderAnswer converts an answer container's markup into plain text that
// keeps paragraph and list structure. Citation buttons, icons and scripts
// are dropped so the same answer always renders to the same text.
func renderAnswer(markup string) (string, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return "", fmt.Errorf("failed to parse answer markup: %w", err)
	}

	r := &renderer{}
	for _, n := range nodes {
		r.node(n)
	}
	return r.String(), nil
}

type renderer struct {
	lines []string
	line  strings.Builder
	// listDepth tracks nesting for bullet indentation
	listDepth int
}

func (r *renderer) node(n *html.Node) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		r.text(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if isSkippedElement(tag) {
			return
		}
		r.element(n, tag)
		return
	}
	r.children(n)
}

func (r *renderer) element(n *html.Node, tag string) {
	switch {
	case tag == "br":
		r.breakLine()
	case tag == "li":
		r.breakLine()
		r.line.WriteString(strings.Repeat("  ", max(r.listDepth-1, 0)) + "- ")
		r.children(n)
		r.breakLine()
	case tag == "ul" || tag == "ol":
		r.listDepth++
		r.paragraph()
		r.children(n)
		r.listDepth--
		r.paragraph()
	case isBlockElement(tag):
		r.paragraph()
		r.children(n)
		r.paragraph()
	default:
		r.children(n)
	}
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.node(c)
	}
}

// text appends collapsed whitespace-separated words.
func (r *renderer) text(data string) {
	words := strings.Fields(data)
	if len(words) == 0 {
		if data != "" && r.line.Len() > 0 && !strings.HasSuffix(r.line.String(), " ") {
			r.line.WriteByte(' ')
		}
		return
	}
	current := r.line.String()
	leadingSpace := data[0] == ' ' || data[0] == '\n' || data[0] == '\t'
	if leadingSpace && current != "" && !strings.HasSuffix(current, " ") {
		r.line.WriteByte(' ')
	}
	r.line.WriteString(strings.Join(words, " "))
	last := data[len(data)-1]
	if last == ' ' || last == '\n' || last == '\t' {
		r.line.WriteByte(' ')
	}
}

func (r *renderer) breakLine() {
	line := strings.TrimRight(r.line.String(), " ")
	r.line.Reset()
	if strings.TrimSpace(line) == "" {
		return
	}
	r.lines = append(r.lines, line)
}

// paragraph ends the current line and leaves one blank line after it.
func (r *renderer) paragraph() {
	r.breakLine()
	if n := len(r.lines); n > 0 && r.lines[n-1] != "" {
		r.lines = append(r.lines, "")
	}
}

func (r *renderer) String() string {
	r.breakLine()
	return strings.TrimSpace(strings.Join(r.lines, "\n"))
}

// isSkippedElement reports elements that never contribute answer text.
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "svg", "button", "mat-icon":
		return true
	}
	return false
}

// isBlockElement reports elements rendered as their own paragraph.
func isBlockElement(tagName string) bool {
	switch tagName {
	case "p", "div", "section", "article", "blockquote", "pre", "table", "tr",
		"h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

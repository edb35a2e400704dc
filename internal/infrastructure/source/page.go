package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// Elements whose content is never shown to a reader
var hiddenElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Head:     true,
}

// Elements that start a new line of text
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Section: true, atom.Article: true, atom.Header: true,
	atom.Footer: true, atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Title: true,
}

// FetchPage downloads an HTML page and reduces it to visible text
func (f *HTTPFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	body, contentType, err := f.get(ctx, url, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	if err != nil {
		return "", err
	}

	text, err := VisibleText(body, contentType)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", url, err)
	}
	return text, nil
}

// VisibleText renders an HTML document as the text a reader would see, one
// block per line. The document title and any schema.org Recipe JSON-LD are
// kept since both usually carry the recipe's name and ingredient list.
func VisibleText(body []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(reader)
	if err != nil {
		return "", err
	}

	w := &textWriter{}
	w.walk(doc, false)

	text := w.String()
	if len(w.structured) > 0 {
		text += "\n\nStructured data:\n" + strings.Join(w.structured, "\n")
	}
	return text, nil
}

type textWriter struct {
	lines      []string
	current    strings.Builder
	structured []string
}

func (w *textWriter) walk(n *html.Node, hidden bool) {
	switch n.Type {
	case html.TextNode:
		if !hidden {
			w.write(n.Data)
		}
		return
	case html.ElementNode:
		switch {
		case n.DataAtom == atom.Title:
			w.flush()
			w.write(nodeText(n))
			w.flush()
			return
		case n.DataAtom == atom.Script && isRecipeJSONLD(n):
			w.structured = append(w.structured, strings.TrimSpace(nodeText(n)))
			return
		case hiddenElements[n.DataAtom]:
			hidden = true
		}
		if blockElements[n.DataAtom] {
			w.flush()
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, hidden)
	}

	if n.Type == html.ElementNode && blockElements[n.DataAtom] {
		w.flush()
	}
}

func (w *textWriter) write(s string) {
	for _, field := range strings.Fields(s) {
		if w.current.Len() > 0 {
			w.current.WriteByte(' ')
		}
		w.current.WriteString(field)
	}
}

func (w *textWriter) flush() {
	if w.current.Len() == 0 {
		return
	}
	w.lines = append(w.lines, w.current.String())
	w.current.Reset()
}

func (w *textWriter) String() string {
	w.flush()
	return strings.Join(w.lines, "\n")
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func isRecipeJSONLD(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "type" && strings.EqualFold(strings.TrimSpace(attr.Val), "application/ld+json") {
			return strings.Contains(nodeText(n), "Recipe")
		}
	}
	return false
}

// Package cardtext extracts readable prose from flashcard HTML fragments.
// The extracted text is what gets fed to speech synthesis when a card side
// ships without a spoken-text override.
package cardtext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extract parses a card side's HTML fragment and returns the plain prose.
// Citations, style and script blocks, images and hidden hint elements are
// dropped; runs of whitespace collapse to single spaces.
func Extract(fragment string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, n := range nodes {
		traverse(n, &b)
	}
	return collapse(b.String()), nil
}

func traverse(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}

	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Sup, atom.Style, atom.Script, atom.Audio, atom.Video, atom.Img:
			return
		}
		for _, a := range n.Attr {
			if a.Key == "class" && (strings.Contains(a.Val, "hint") || strings.Contains(a.Val, "no-tts")) {
				return
			}
		}
		// Block elements act as word boundaries so "<div>a</div><div>b</div>"
		// doesn't read as "ab".
		if isBlock(n.DataAtom) {
			b.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverse(c, b)
	}

	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		b.WriteString(" ")
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Table,
		atom.Tr, atom.Td, atom.Th, atom.H1, atom.H2, atom.H3, atom.H4,
		atom.H5, atom.H6, atom.Blockquote:
		return true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

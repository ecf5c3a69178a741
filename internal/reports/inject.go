package reports

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Inject rewrites a report's index.html: the head partial is prepended to
// <head>, the header partial to <body>, and the first csrf-token meta tag
// carries csrfToken. A meta tag is appended to <head> when none exists.
func Inject(doc io.Reader, head, header []byte, csrfToken string) ([]byte, error) {
	root, err := html.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}

	headEl := findElement(root, atom.Head)
	bodyEl := findElement(root, atom.Body)
	if headEl == nil || bodyEl == nil {
		return nil, fmt.Errorf("parse report: missing head or body")
	}

	if err := prependFragment(headEl, head); err != nil {
		return nil, fmt.Errorf("inject head: %w", err)
	}
	if err := prependFragment(bodyEl, header); err != nil {
		return nil, fmt.Errorf("inject header: %w", err)
	}

	meta := findCSRFMeta(root)
	if meta == nil {
		meta = &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Meta,
			Data:     "meta",
			Attr:     []html.Attribute{{Key: "name", Val: "csrf-token"}},
		}
		headEl.AppendChild(meta)
	}
	setAttr(meta, "content", csrfToken)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func prependFragment(parent *html.Node, fragment []byte) error {
	if len(bytes.TrimSpace(fragment)) == 0 {
		return nil
	}
	nodes, err := html.ParseFragment(bytes.NewReader(fragment), parent)
	if err != nil {
		return err
	}
	first := parent.FirstChild
	for _, n := range nodes {
		parent.InsertBefore(n, first)
	}
	return nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func findCSRFMeta(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Meta && strings.EqualFold(attr(n, "name"), "csrf-token") {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findCSRFMeta(c); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

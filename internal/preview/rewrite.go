package preview

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// frameBusters are script fragments that try to escape or blank an iframe.
var frameBusters = []string{
	"top.location",
	"window.top",
	"self.location",
	"parent.location",
	"top != self",
	"top !== self",
	"self != top",
	"self !== top",
	"window.self !== window.top",
	"window.frameelement",
}

// Rewrite makes a fetched page embeddable: relative URLs resolve against
// baseURL and anything that blocks framing is removed.
func Rewrite(page []byte, baseURL string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var head *html.Node
	var drop []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Head:
				if head == nil {
					head = n
				}
			case atom.Base:
				drop = append(drop, n)
			case atom.Meta:
				if blocksFraming(n) {
					drop = append(drop, n)
				}
			case atom.Script:
				if isFrameBuster(n) {
					drop = append(drop, n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, n := range drop {
		n.Parent.RemoveChild(n)
	}

	// html.Parse always synthesizes a head element.
	if head != nil {
		base := &html.Node{
			Type:     html.ElementNode,
			Data:     "base",
			DataAtom: atom.Base,
			Attr:     []html.Attribute{{Key: "href", Val: baseURL}},
		}
		head.InsertBefore(base, head.FirstChild)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func blocksFraming(n *html.Node) bool {
	switch strings.ToLower(strings.TrimSpace(attr(n, "http-equiv"))) {
	case "content-security-policy", "content-security-policy-report-only", "x-frame-options":
		return true
	}
	return false
}

func isFrameBuster(n *html.Node) bool {
	if n.FirstChild == nil || n.FirstChild.Type != html.TextNode {
		return false
	}
	src := strings.ToLower(n.FirstChild.Data)
	src = strings.Join(strings.Fields(src), " ")
	for _, pattern := range frameBusters {
		if strings.Contains(src, pattern) {
			return true
		}
	}
	return false
}

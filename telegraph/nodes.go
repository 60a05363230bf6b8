// Package telegraph converts digest HTML into Telegraph's node format
// and publishes it through the Telegraph API.
package telegraph

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// Node is one element of Telegraph page content. A node is either plain
// text or a tag with optional attributes and children, which Telegraph
// encodes as a bare JSON string or an object respectively.
type Node struct {
	Text     string
	Tag      string
	Attrs    map[string]string
	Children []Node
}

func (n Node) MarshalJSON() ([]byte, error) {
	if n.Tag == "" {
		return json.Marshal(n.Text)
	}
	obj := struct {
		Tag      string            `json:"tag"`
		Attrs    map[string]string `json:"attrs,omitempty"`
		Children []Node            `json:"children,omitempty"`
	}{n.Tag, n.Attrs, n.Children}
	return json.Marshal(obj)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &n.Text)
	}
	var obj struct {
		Tag      string            `json:"tag"`
		Attrs    map[string]string `json:"attrs"`
		Children []Node            `json:"children"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	n.Tag, n.Attrs, n.Children = obj.Tag, obj.Attrs, obj.Children
	return nil
}

// Tags Telegraph accepts. Anything else is unwrapped into its children.
var allowedTags = map[string]bool{
	"a": true, "aside": true, "b": true, "blockquote": true, "br": true,
	"code": true, "em": true, "figcaption": true, "figure": true,
	"h3": true, "h4": true, "hr": true, "i": true, "iframe": true,
	"img": true, "li": true, "ol": true, "p": true, "pre": true,
	"s": true, "strong": true, "u": true, "ul": true, "video": true,
}

// Telegraph has no h1/h2, they map onto the two heading levels it has.
var headingDowngrade = map[string]string{
	"h1": "h3",
	"h2": "h4",
	"h5": "h4",
	"h6": "h4",
}

// Page is a converted digest ready for publishing.
type Page struct {
	Title   string `json:"title"`
	Content []Node `json:"content"`
}

// Convert parses digest HTML into a Telegraph page. The first h1 becomes
// the page title (falling back to defaultTitle) and is removed from the
// content.
func Convert(digestHTML, defaultTitle string) (Page, error) {
	root, err := html.Parse(strings.NewReader(digestHTML))
	if err != nil {
		return Page{}, err
	}

	page := Page{Title: defaultTitle}
	body := findBody(root)
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		if page.Title == defaultTitle && child.Type == html.ElementNode && child.Data == "h1" {
			if title := strings.TrimSpace(textContent(child)); title != "" {
				page.Title = title
				continue
			}
		}
		page.Content = append(page.Content, convertNode(child)...)
	}
	return page, nil
}

// AppendFooter adds the configured footer paragraph to the page content.
func AppendFooter(page Page, text, linkText, linkURL string) Page {
	if text == "" && linkText == "" {
		return page
	}
	var children []Node
	if text != "" {
		children = append(children, Node{Text: text + " "})
	}
	if linkText != "" && linkURL != "" {
		children = append(children, Node{
			Tag:      "a",
			Attrs:    map[string]string{"href": linkURL},
			Children: []Node{{Text: linkText}},
		})
	}
	page.Content = append(page.Content, Node{Tag: "p", Children: children})
	return page
}

func convertNode(n *html.Node) []Node {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}
		return []Node{{Text: n.Data}}
	case html.ElementNode:
		tag := n.Data
		if mapped, ok := headingDowngrade[tag]; ok {
			tag = mapped
		}
		children := convertChildren(n)
		if !allowedTags[tag] {
			// Unknown tag: keep its content, drop the wrapper.
			return children
		}
		node := Node{Tag: tag, Children: children}
		switch tag {
		case "a":
			if href := attr(n, "href"); href != "" {
				node.Attrs = map[string]string{"href": href}
			}
		case "img", "video", "iframe":
			if src := attr(n, "src"); src != "" {
				node.Attrs = map[string]string{"src": src}
			}
		}
		return []Node{node}
	default:
		return nil
	}
}

func convertChildren(n *html.Node) []Node {
	var nodes []Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		nodes = append(nodes, convertNode(child)...)
	}
	return nodes
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if body := findBody(child); body != nil {
			return body
		}
	}
	return n
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

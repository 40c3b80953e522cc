// Package render turns LLM summary replies into safe HTML fragments.
package render

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ppiankov/democoach/internal/util"
)

var tagPattern = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

var droppedElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Iframe: true,
	atom.Object: true,
	atom.Embed:  true,
}

// NormalizeSummary returns the summary as an HTML fragment. A fenced reply is
// unwrapped, plain or Markdown text is rendered to HTML, and active content
// such as scripts is removed.
func NormalizeSummary(text string) string {
	text = util.StripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return ""
	}

	if !tagPattern.MatchString(text) {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(text), &buf); err == nil {
			text = buf.String()
		}
	}

	return sanitize(text)
}

func sanitize(fragment string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return html.EscapeString(fragment)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		strip(n)
		if n.Type == html.ElementNode && droppedElements[n.DataAtom] {
			continue
		}
		if err := html.Render(&buf, n); err != nil {
			return html.EscapeString(fragment)
		}
	}
	return strings.TrimSpace(buf.String())
}

// strip removes dropped elements and inline event handlers below n
func strip(n *html.Node) {
	if n.Type == html.ElementNode {
		attrs := n.Attr[:0]
		for _, a := range n.Attr {
			if strings.HasPrefix(strings.ToLower(a.Key), "on") {
				continue
			}
			if a.Key == "href" && strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
				continue
			}
			attrs = append(attrs, a)
		}
		n.Attr = attrs
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && droppedElements[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			strip(c)
		}
		c = next
	}
}

// PlainText returns the text content of an HTML fragment, for terminals
func PlainText(fragment string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return fragment
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && droppedElements[n.DataAtom]:
			return
		case n.Type == html.ElementNode && (n.DataAtom == atom.P || n.DataAtom == atom.Br || n.DataAtom == atom.Li):
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.TrimSpace(sb.String())
}

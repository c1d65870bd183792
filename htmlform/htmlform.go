// Package htmlform extracts fillable form fields from static HTML. It
// feeds the same matching pipeline as the live browser path, which makes
// fill plans testable and scriptable without a Chrome instance.
package htmlform

import (
	"fmt"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/formagent/formagent/match"
	"github.com/formagent/formagent/profile"
)

// labelPolicy strips every tag from label markup, leaving plain text.
var labelPolicy = bluemonday.StrictPolicy()

// Parse reads an HTML document and returns its input, select, and
// textarea elements as match candidates, in document order.
func Parse(r io.Reader) ([]match.Candidate, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmlform: parse: %w", err)
	}

	labels := labelsFor(doc)

	var out []match.Candidate
	var walk func(n *html.Node, inLabel string)
	walk = func(n *html.Node, inLabel string) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "label":
				inLabel = labelText(n)
			case "input", "select", "textarea":
				c := candidate(n, len(out))
				if c.Label == "" {
					if byFor, ok := labels[c.ID]; ok && c.ID != "" {
						c.Label = byFor
					} else {
						c.Label = inLabel
					}
				}
				out = append(out, c)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inLabel)
		}
	}
	walk(doc, "")

	return out, nil
}

// Plan parses the document and returns the writes a fill pass would make.
func Plan(r io.Reader, p *profile.Profile, fillHidden bool) ([]match.Assignment, error) {
	candidates, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return match.Plan(candidates, p, fillHidden), nil
}

func candidate(n *html.Node, index int) match.Candidate {
	c := match.Candidate{Index: index, Tag: n.Data}
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "type":
			c.Type = strings.ToLower(a.Val)
		case "value":
			c.Value = a.Val
		case "name":
			c.Name = a.Val
		case "id":
			c.ID = a.Val
		case "placeholder":
			c.Placeholder = a.Val
		case "data-field":
			c.DataField = a.Val
		case "hidden":
			c.Hidden = true
		case "disabled":
			c.Disabled = true
		case "readonly":
			c.ReadOnly = true
		}
	}
	if c.Type == "hidden" {
		c.Hidden = true
	}
	switch n.Data {
	case "select":
		c.Value = selectedOption(n)
	case "textarea":
		c.Value = strings.TrimSpace(text(n))
	}
	return c
}

// labelsFor maps control IDs to the text of their label[for] elements.
func labelsFor(doc *html.Node) map[string]string {
	out := make(map[string]string)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			for _, a := range n.Attr {
				if strings.ToLower(a.Key) == "for" && a.Val != "" {
					out[a.Val] = labelText(n)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return out
}

// labelText renders a label's content, strips markup, and collapses
// whitespace.
func labelText(n *html.Node) string {
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&sb, child); err != nil {
			return ""
		}
	}
	clean := labelPolicy.Sanitize(sb.String())
	return strings.Join(strings.Fields(clean), " ")
}

func selectedOption(sel *html.Node) string {
	first := ""
	for child := sel.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode || child.Data != "option" {
			continue
		}
		val := optionValue(child)
		if first == "" {
			first = val
		}
		for _, a := range child.Attr {
			if strings.ToLower(a.Key) == "selected" {
				return val
			}
		}
	}
	return first
}

func optionValue(opt *html.Node) string {
	for _, a := range opt.Attr {
		if strings.ToLower(a.Key) == "value" {
			return a.Val
		}
	}
	return strings.TrimSpace(text(opt))
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

// Package document builds an in-memory labeled tree from an XML ballot
// document. The tree keeps parent links so that callers can climb from any
// node to its ancestors, and offers the few descendant queries the vote
// extractor needs. It is not a general query engine.
package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

// ErrMalformed is returned when a document cannot be turned into a tree.
var ErrMalformed = errors.New("malformed document")

// Node is one element of a parsed document.
type Node struct {
	Name     string // local name, namespace prefix stripped
	Space    string
	Attrs    []xml.Attr
	Parent   *Node
	Children []*Node

	text strings.Builder
}

// Text returns the node's own character data, trimmed.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.text.String())
}

// InnerText returns the character data of the node and all its descendants.
func (n *Node) InnerText() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	n.walk(func(d *Node) bool {
		sb.WriteString(d.text.String())
		return true
	})
	return sb.String()
}

// Attr looks up an attribute by local name.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Ancestors returns up to limit ancestors, immediate parent first.
func (n *Node) Ancestors(limit int) []*Node {
	if n == nil || limit <= 0 {
		return nil
	}
	var out []*Node
	for cur := n.Parent; cur != nil && len(out) < limit; cur = cur.Parent {
		out = append(out, cur)
	}
	return out
}

// Find returns every descendant named name, in document order. The node
// itself is not included.
func (n *Node) Find(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		c.walk(func(d *Node) bool {
			if d.Name == name {
				out = append(out, d)
			}
			return true
		})
	}
	return out
}

// First returns the first descendant named name in document order, or nil.
func (n *Node) First(name string) *Node {
	if n == nil {
		return nil
	}
	var found *Node
	for _, c := range n.Children {
		c.walk(func(d *Node) bool {
			if d.Name == name {
				found = d
				return false
			}
			return true
		})
		if found != nil {
			break
		}
	}
	return found
}

// FirstText returns the trimmed inner text of the first descendant named
// name, or "" when there is none.
func (n *Node) FirstText(name string) string {
	return strings.TrimSpace(n.First(name).InnerText())
}

// walk visits n and its descendants depth-first in document order until fn
// returns false. It uses an explicit stack so that very deep documents do
// not grow the goroutine stack.
func (n *Node) walk(fn func(*Node) bool) bool {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			return false
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
	return true
}

// Parse reads a whole XML document and returns its root element.
//
// The document is consumed as a stream of pull-parser events while a stack
// of open elements is maintained. Any tokenizer error, stray closing tag or
// unterminated element yields an error wrapping ErrMalformed.
func Parse(r io.Reader) (*Node, error) {
	p := xpp.NewXMLPullParser(r, false, charset.NewReaderLabel)

	var root *Node
	var stack []*Node

	for {
		ev, err := p.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch ev {
		case xpp.StartTag:
			n := &Node{
				Name:  p.Name,
				Space: p.Space,
				Attrs: append([]xml.Attr(nil), p.Attrs...),
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformed)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				n.Parent = parent
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)

		case xpp.EndTag:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected closing tag %q", ErrMalformed, p.Name)
			}
			stack = stack[:len(stack)-1]

		case xpp.Text:
			if len(stack) > 0 {
				stack[len(stack)-1].text.WriteString(p.Text)
			}

		case xpp.EndDocument:
			if root == nil {
				return nil, fmt.Errorf("%w: no root element", ErrMalformed)
			}
			if len(stack) != 0 {
				return nil, fmt.Errorf("%w: %d unclosed elements", ErrMalformed, len(stack))
			}
			return root, nil
		}
	}
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

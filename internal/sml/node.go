package sml

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Node is one element of a parsed source model tree. A node has a tag (the
// HCL block type), a bag of scalar attributes, and ordered children. A block
// label, when present, is stored as the "id" attribute so that converters
// only ever deal with tags and attributes.
type Node struct {
	Tag      string
	Attrs    map[string]cty.Value
	Children []*Node

	// DefRange covers the block header in the file the node was parsed
	// from. Synthetic nodes built during consolidation have a zero range.
	DefRange hcl.Range
}

// NewNode creates a synthetic node with the given tag and no attributes.
func NewNode(tag string) *Node {
	return &Node{Tag: tag, Attrs: make(map[string]cty.Value)}
}

// Attr returns the named attribute value and whether it is present.
func (n *Node) Attr(name string) (cty.Value, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attrs[name]
	return ok
}

// SetAttr sets or replaces an attribute. Used by the consolidation rewrite
// when synthesizing multi-point nodes.
func (n *Node) SetAttr(name string, v cty.Value) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]cty.Value)
	}
	n.Attrs[name] = v
}

// DelAttr removes an attribute if present.
func (n *Node) DelAttr(name string) {
	delete(n.Attrs, name)
}

// ID returns the node's "id" attribute, or "" when the node has none.
func (n *Node) ID() string {
	v, ok := n.Attrs["id"]
	if !ok || v.Type() != cty.String {
		return ""
	}
	return v.AsString()
}

// Child returns the first child with the given tag, or nil.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildrenTagged returns all children with the given tag, in order.
func (n *Node) ChildrenTagged(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Append adds children to the node, preserving order.
func (n *Node) Append(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Errorf builds an error located at the node's definition range. All
// conversion failures go through this so the user always gets a
// file:line,column prefix to chase.
func (n *Node) Errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if n.DefRange.Filename == "" {
		return fmt.Errorf("%s: %s", n.Tag, msg)
	}
	return fmt.Errorf("%s: %s: %s", n.DefRange, n.Tag, msg)
}

// String renders a short description for logs and error messages.
func (n *Node) String() string {
	if id := n.ID(); id != "" {
		return fmt.Sprintf("<%s %q, %d children>", n.Tag, id, len(n.Children))
	}
	return fmt.Sprintf("<%s, %d children>", n.Tag, len(n.Children))
}

// Package slots exposes the CQL connection and execution as named slots that operate on a
// tree of nodes: cql.connect scopes a session to its children, cql.execute runs a statement
// and replaces its children with the result rows.
package slots

import (
	"fmt"
	"strings"
)

// Node is a named value with ordered children.
type Node struct {
	Name     string  `json:"name"`
	Value    any     `json:"value,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// NewNode creates a node with the given children.
func NewNode(name string, value any, children ...*Node) *Node {
	return &Node{
		Name:     name,
		Value:    value,
		Children: children,
	}
}

// Add appends children to the node.
func (n *Node) Add(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Clear removes every child.
func (n *Node) Clear() {
	n.Children = nil
}

// Child returns the first child named name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// String renders the tree one node per line, children indented by three spaces.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb, 0)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("   ", depth))
	sb.WriteString(n.Name)
	if n.Value != nil {
		fmt.Fprintf(sb, ":%v", n.Value)
	}
	sb.WriteByte('\n')
	for _, c := range n.Children {
		c.write(sb, depth+1)
	}
}

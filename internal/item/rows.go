package item

import (
	"sort"
	"strings"
)

// Row is one line of a flattened tree listing.
type Row struct {
	Kind  Kind
	Label string
	Depth int
	Node  *Node
}

type BuildOptions struct {
	// Sorted lists containers before feeds, then titles case-insensitively.
	// Otherwise children keep their tree order.
	Sorted    bool
	Collapsed map[*Node]bool
	HideBin   bool
}

// BuildRows flattens the descendants of root parent-first.
func BuildRows(root *Node, opts BuildOptions) []Row {
	if root == nil {
		return nil
	}
	rows := make([]Row, 0, 16)
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		for _, child := range orderedChildren(n, opts.Sorted) {
			if opts.HideBin && child.Kind == KindRecycleBin {
				continue
			}
			rows = append(rows, Row{
				Kind:  child.Kind,
				Label: label(child),
				Depth: depth,
				Node:  child,
			})
			if opts.Collapsed[child] {
				continue
			}
			visit(child, depth+1)
		}
	}
	visit(root, 0)
	return rows
}

func orderedChildren(n *Node, sorted bool) []*Node {
	if !sorted {
		return n.Children
	}
	out := append([]*Node(nil), n.Children...)
	sort.SliceStable(out, func(i, j int) bool {
		ci := out[i].Kind.CanHaveChildren()
		cj := out[j].Kind.CanHaveChildren()
		if ci != cj {
			return ci
		}
		ti := strings.ToLower(strings.TrimSpace(out[i].Title))
		tj := strings.ToLower(strings.TrimSpace(out[j].Title))
		if ti != tj {
			return ti < tj
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func label(n *Node) string {
	name := strings.TrimSpace(n.Title)
	if name == "" {
		if n.Kind == KindFeed && n.URL != "" {
			return n.URL
		}
		return "untitled " + string(n.Kind)
	}
	return name
}

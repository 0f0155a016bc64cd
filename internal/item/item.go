package item

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindCategory    Kind = "category"
	KindFeed        Kind = "feed"
	KindServiceRoot Kind = "service_root"
	KindRecycleBin  Kind = "recycle_bin"
)

var (
	ErrNotContainer      = errors.New("parent cannot hold child items")
	ErrAlreadyAttached   = errors.New("item already has a parent")
	ErrDuplicateCategory = errors.New("category with the same title already exists")
	ErrUnsupportedKind   = errors.New("unsupported item kind")
	errNilParent         = errors.New("parent is nil")
)

// Node is one element of a feed tree. Each node is owned by its parent; Parent
// is a back-reference only.
type Node struct {
	ID          int64
	Kind        Kind
	Title       string
	Description string
	Icon        string
	URL         string

	Children []*Node
	Parent   *Node
}

func NewCategory(title string) *Node {
	return &Node{Kind: KindCategory, Title: title}
}

func NewFeed(title, url string) *Node {
	return &Node{Kind: KindFeed, Title: title, URL: url}
}

func NewServiceRoot(title string) *Node {
	return &Node{Kind: KindServiceRoot, Title: title}
}

func NewRecycleBin() *Node {
	return &Node{Kind: KindRecycleBin, Title: "Recycle bin"}
}

// CanHaveChildren reports whether k is a container kind.
func (k Kind) CanHaveChildren() bool {
	return k == KindCategory || k == KindServiceRoot
}

func (k Kind) Valid() bool {
	switch k {
	case KindCategory, KindFeed, KindServiceRoot, KindRecycleBin:
		return true
	}
	return false
}

func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, raw)
	}
	return k, nil
}

// Clone copies the node attributes. The copy has no ID, parent or children.
func (n *Node) Clone() *Node {
	return &Node{
		Kind:        n.Kind,
		Title:       n.Title,
		Description: n.Description,
		Icon:        n.Icon,
		URL:         n.URL,
	}
}

// CanAttach reports why n could not be appended under parent, or nil.
func (n *Node) CanAttach(parent *Node) error {
	if parent == nil {
		return errNilParent
	}
	if n.Parent != nil {
		return ErrAlreadyAttached
	}
	if !parent.Kind.CanHaveChildren() {
		return fmt.Errorf("%w: %s %q", ErrNotContainer, parent.Kind, parent.Title)
	}
	if n.Kind == KindCategory && parent.ChildCategory(n.Title) != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateCategory, n.Title)
	}
	return nil
}

// AttachTo appends n as the last child of parent. Category titles must be
// unique among sibling categories; feeds are never rejected on title.
func (n *Node) AttachTo(parent *Node) error {
	if err := n.CanAttach(parent); err != nil {
		return err
	}
	parent.Children = append(parent.Children, n)
	n.Parent = parent
	return nil
}

// Detach removes n from its parent. It is a no-op for a root.
func (n *Node) Detach() {
	parent := n.Parent
	if parent == nil {
		return
	}
	for i, child := range parent.Children {
		if child == n {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	n.Parent = nil
}

// ChildCategory returns the direct child category titled exactly title. If
// several match, the last one wins.
func (n *Node) ChildCategory(title string) *Node {
	var found *Node
	for _, child := range n.Children {
		if child.Kind == KindCategory && child.Title == title {
			found = child
		}
	}
	return found
}

// Walk visits n and its descendants parent-first in sibling order. Returning
// false from fn skips the subtree of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Count returns the number of descendants of n with the given kind.
func (n *Node) Count(kind Kind) int {
	total := 0
	for _, child := range n.Children {
		child.Walk(func(d *Node) bool {
			if d.Kind == kind {
				total++
			}
			return true
		})
	}
	return total
}

// Path returns the titles from the root down to n, excluding the root.
func (n *Node) Path() []string {
	var parts []string
	for cur := n; cur != nil && cur.Parent != nil; cur = cur.Parent {
		parts = append(parts, cur.Title)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts
}

// Find returns the first descendant (or n itself) with the given ID.
func (n *Node) Find(id int64, kind Kind) *Node {
	var found *Node
	n.Walk(func(d *Node) bool {
		if found != nil {
			return false
		}
		if d.ID == id && d.Kind == kind {
			found = d
			return false
		}
		return true
	})
	return found
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %q", n.Kind, n.Title)
}

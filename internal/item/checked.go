package item

// CheckedSet marks the nodes of an import payload selected for merging.
// Membership is by node identity.
type CheckedSet struct {
	nodes map[*Node]struct{}
}

func NewCheckedSet(nodes ...*Node) *CheckedSet {
	s := &CheckedSet{nodes: make(map[*Node]struct{}, len(nodes))}
	for _, n := range nodes {
		s.Check(n)
	}
	return s
}

// CheckAll returns a set holding every descendant of root, root excluded.
func CheckAll(root *Node) *CheckedSet {
	s := NewCheckedSet()
	for _, child := range root.Children {
		child.Walk(func(n *Node) bool {
			s.Check(n)
			return true
		})
	}
	return s
}

// CheckWhere returns a set holding every descendant of root for which keep
// returns true. Descendants of an unselected node are still visited.
func CheckWhere(root *Node, keep func(*Node) bool) *CheckedSet {
	s := NewCheckedSet()
	for _, child := range root.Children {
		child.Walk(func(n *Node) bool {
			if keep(n) {
				s.Check(n)
			}
			return true
		})
	}
	return s
}

func (s *CheckedSet) Check(n *Node) {
	if n == nil {
		return
	}
	if s.nodes == nil {
		s.nodes = make(map[*Node]struct{})
	}
	s.nodes[n] = struct{}{}
}

func (s *CheckedSet) Uncheck(n *Node) {
	delete(s.nodes, n)
}

func (s *CheckedSet) Contains(n *Node) bool {
	if s == nil {
		return false
	}
	_, ok := s.nodes[n]
	return ok
}

func (s *CheckedSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.nodes)
}

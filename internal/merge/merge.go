// Package merge folds a checked import payload into an existing feed tree.
//
// Categories are deduplicated by exact title against the siblings of the
// insertion point; feeds are always appended. Failures of single items never
// stop the walk, they are only aggregated into the Result.
package merge

import (
	"github.com/glabrego/reeder/internal/item"
)

const (
	MessageComplete = "Import was completely successful."
	MessagePartial  = "Import successful, but some feeds/categories were not imported due to error."
)

// Attacher appends child under parent. A non-nil error means child was not
// attached and must be discarded.
type Attacher interface {
	Attach(parent, child *item.Node) error
}

type AttacherFunc func(parent, child *item.Node) error

func (f AttacherFunc) Attach(parent, child *item.Node) error {
	return f(parent, child)
}

// TreeAttacher attaches in memory only.
var TreeAttacher Attacher = AttacherFunc(func(parent, child *item.Node) error {
	return child.AttachTo(parent)
})

// Failure describes one source item that could not be merged.
type Failure struct {
	Source *item.Node
	Parent *item.Node
	Err    error
}

type Result struct {
	OK      bool
	Message string
	// Added lists the new nodes in attach order. Categories matched to an
	// existing sibling are not listed.
	Added  []*item.Node
	Failed []Failure
}

type Option func(*options)

type options struct {
	attacher Attacher
}

func WithAttacher(a Attacher) Option {
	return func(o *options) {
		if a != nil {
			o.attacher = a
		}
	}
}

type frame struct {
	destination *item.Node
	source      *item.Node
}

// Merge copies every checked descendant of source under destination. A node
// that is not checked is skipped together with its whole subtree, even if some
// of its descendants are checked.
func Merge(source, destination *item.Node, checked *item.CheckedSet, opts ...Option) Result {
	o := options{attacher: TreeAttacher}
	for _, opt := range opts {
		opt(&o)
	}

	var res Result
	if source == nil || destination == nil {
		return finish(res)
	}

	stack := []frame{{destination: destination, source: source}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range top.source.Children {
			if !checked.Contains(child) {
				continue
			}

			switch child.Kind {
			case item.KindCategory:
				clone := child.Clone()
				err := o.attacher.Attach(top.destination, clone)
				if err == nil {
					res.Added = append(res.Added, clone)
					stack = append(stack, frame{destination: clone, source: child})
					continue
				}
				// The title may already exist under this parent: descend into it.
				if existing := top.destination.ChildCategory(child.Title); existing != nil {
					stack = append(stack, frame{destination: existing, source: child})
					continue
				}
				res.Failed = append(res.Failed, Failure{Source: child, Parent: top.destination, Err: err})
			case item.KindFeed:
				clone := child.Clone()
				if err := o.attacher.Attach(top.destination, clone); err != nil {
					res.Failed = append(res.Failed, Failure{Source: child, Parent: top.destination, Err: err})
					continue
				}
				res.Added = append(res.Added, clone)
			}
		}
	}
	return finish(res)
}

func finish(res Result) Result {
	res.OK = len(res.Failed) == 0
	if res.OK {
		res.Message = MessageComplete
	} else {
		res.Message = MessagePartial
	}
	return res
}

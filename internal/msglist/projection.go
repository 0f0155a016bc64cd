package msglist

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Filter keeps the rows whose cell matches Text. An empty Text keeps every
// row.
type Filter struct {
	Text   string
	Column int
	Role   Role
	Mode   MatchMode
}

// Projection maps logical rows of a Source to view rows. The view is rebuilt
// only by SetFilter, Sort and Refresh; mutating the source does not re-sort.
type Projection struct {
	source      Source
	titleColumn int
	locale      language.Tag
	collator    *collate.Collator
	coerce      func(any) (string, bool)

	filter     Filter
	sortColumn int
	order      Order

	view  []int
	index []int
}

type Option func(*Projection)

// WithLocale sets the collation used for the title column.
func WithLocale(tag language.Tag) Option {
	return func(p *Projection) {
		p.locale = tag
	}
}

// WithTitleColumn marks the column compared with locale collation.
func WithTitleColumn(column int) Option {
	return func(p *Projection) {
		p.titleColumn = column
	}
}

// WithTextCoercion lets text match modes and filters read non-string cells.
func WithTextCoercion(fn func(any) (string, bool)) Option {
	return func(p *Projection) {
		if fn != nil {
			p.coerce = fn
		}
	}
}

func New(source Source, opts ...Option) *Projection {
	p := &Projection{
		source:      source,
		titleColumn: AnyColumn,
		locale:      language.AmericanEnglish,
		coerce:      stringValue,
		filter:      Filter{Column: AnyColumn, Role: RoleDisplay},
		sortColumn:  Unsorted,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.collator = collate.New(p.locale)
	p.rebuild()
	return p
}

func (p *Projection) Source() Source {
	return p.source
}

func (p *Projection) Filter() Filter {
	return p.filter
}

func (p *Projection) SortColumn() (int, Order) {
	return p.sortColumn, p.order
}

// SetFilter replaces the active filter and rebuilds the view.
func (p *Projection) SetFilter(f Filter) {
	p.filter = f
	p.rebuild()
}

// Sort orders the view by column. Unsorted restores logical order. Ties keep
// their logical order.
func (p *Projection) Sort(column int, order Order) {
	p.sortColumn = column
	p.order = order
	p.applySort()
	p.reindex()
}

// Refresh re-reads the source and applies the current filter and sort. Call
// it after the source changed.
func (p *Projection) Refresh() {
	p.rebuild()
}

func (p *Projection) RowCount() int {
	return len(p.view)
}

// LogicalRow returns the source row shown at view row v.
func (p *Projection) LogicalRow(v int) (int, bool) {
	if v < 0 || v >= len(p.view) {
		return 0, false
	}
	return p.view[v], true
}

// ViewRow returns the view row of logical row l, or false when l is filtered
// out or unknown.
func (p *Projection) ViewRow(l int) (int, bool) {
	if l < 0 || l >= len(p.index) || p.index[l] < 0 {
		return 0, false
	}
	return p.index[l], true
}

// MapToView maps logical rows to view rows, dropping rows that have no view
// position.
func (p *Projection) MapToView(logical []int) []int {
	out := make([]int, 0, len(logical))
	for _, l := range logical {
		if v, ok := p.ViewRow(l); ok {
			out = append(out, v)
		}
	}
	return out
}

// MapToLogical maps view rows to logical rows, dropping out of range rows.
func (p *Projection) MapToLogical(view []int) []int {
	out := make([]int, 0, len(view))
	for _, v := range view {
		if l, ok := p.LogicalRow(v); ok {
			out = append(out, l)
		}
	}
	return out
}

// Rows returns the logical rows in view order.
func (p *Projection) Rows() []int {
	return append([]int(nil), p.view...)
}

func (p *Projection) RowID(v int) (int64, bool) {
	l, ok := p.LogicalRow(v)
	if !ok || l >= p.source.RowCount() {
		return 0, false
	}
	return p.source.RowID(l), true
}

func (p *Projection) Value(v, column int, role Role) (any, bool) {
	l, ok := p.LogicalRow(v)
	if !ok || l >= p.source.RowCount() {
		return nil, false
	}
	return p.source.Value(l, column, role), true
}

func (p *Projection) rebuild() {
	rows := 0
	if p.source != nil {
		rows = p.source.RowCount()
	}
	p.view = p.view[:0]
	accept := p.filterFunc()
	for l := 0; l < rows; l++ {
		if accept(l) {
			p.view = append(p.view, l)
		}
	}
	p.applySort()
	p.index = make([]int, rows)
	p.reindex()
}

func (p *Projection) reindex() {
	for i := range p.index {
		p.index[i] = -1
	}
	for v, l := range p.view {
		p.index[l] = v
	}
}

func (p *Projection) applySort() {
	if p.sortColumn == Unsorted {
		sort.Ints(p.view)
		return
	}
	sort.SliceStable(p.view, func(i, j int) bool {
		return p.Compare(p.view[i], p.view[j]) < 0
	})
}

func (p *Projection) filterFunc() func(int) bool {
	f := p.filter
	if f.Text == "" || p.source == nil {
		return func(int) bool { return true }
	}
	m := newMatcher(f.Mode, f.Text, p.coerce)
	columns := []int{f.Column}
	if f.Column == AnyColumn {
		columns = make([]int, p.source.ColumnCount())
		for i := range columns {
			columns[i] = i
		}
	}
	return func(l int) bool {
		for _, c := range columns {
			if m.match(p.source.Value(l, c, f.Role)) {
				return true
			}
		}
		return false
	}
}

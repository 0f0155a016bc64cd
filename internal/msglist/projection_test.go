package msglist

import (
	"fmt"
	"reflect"
	"testing"

	"golang.org/x/text/language"
)

const (
	colID = iota
	colTitle
	colCreated
	colRead
	colCount
)

type fakeRow struct {
	id      int64
	title   string
	created int64
	read    bool
}

type fakeSource struct {
	rows []fakeRow
}

func (s *fakeSource) RowCount() int       { return len(s.rows) }
func (s *fakeSource) ColumnCount() int    { return colCount }
func (s *fakeSource) RowID(row int) int64 { return s.rows[row].id }

func (s *fakeSource) Value(row, column int, role Role) any {
	r := s.rows[row]
	switch column {
	case colID:
		return r.id
	case colTitle:
		return r.title
	case colCreated:
		if role == RoleDisplay {
			return fmt.Sprintf("day %d", r.created)
		}
		return r.created
	case colRead:
		return r.read
	}
	return nil
}

func titlesSource(titles ...string) *fakeSource {
	src := &fakeSource{}
	for i, title := range titles {
		src.rows = append(src.rows, fakeRow{id: int64(i + 1), title: title, created: int64(100 - i)})
	}
	return src
}

func viewTitles(p *Projection) []string {
	out := make([]string, 0, p.RowCount())
	for v := 0; v < p.RowCount(); v++ {
		value, _ := p.Value(v, colTitle, RoleDisplay)
		out = append(out, value.(string))
	}
	return out
}

func TestSort_TitleUsesLocaleCollation(t *testing.T) {
	p := New(titlesSource("Zoé", "Émile", "Adam"), WithTitleColumn(colTitle), WithLocale(language.French))
	p.Sort(colTitle, Ascending)

	want := []string{"Adam", "Émile", "Zoé"}
	if got := viewTitles(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected collation order: got=%v want=%v", got, want)
	}

	p.Sort(colTitle, Descending)
	want = []string{"Zoé", "Émile", "Adam"}
	if got := viewTitles(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected descending order: got=%v want=%v", got, want)
	}
}

func TestSort_NonTitleColumnUsesSortRole(t *testing.T) {
	src := &fakeSource{rows: []fakeRow{
		{id: 1, title: "a", created: 30},
		{id: 2, title: "b", created: 5},
		{id: 3, title: "c", created: 200},
	}}
	p := New(src, WithTitleColumn(colTitle))
	p.Sort(colCreated, Ascending)

	// Display values ("day 200" < "day 30" lexically) must not drive the order.
	if got := p.Rows(); !reflect.DeepEqual(got, []int{1, 0, 2}) {
		t.Fatalf("unexpected numeric order: %v", got)
	}
}

func TestSort_IsStableAndRestorable(t *testing.T) {
	src := &fakeSource{rows: []fakeRow{
		{id: 1, title: "x", read: true},
		{id: 2, title: "y", read: false},
		{id: 3, title: "z", read: true},
		{id: 4, title: "w", read: false},
	}}
	p := New(src)
	p.Sort(colRead, Ascending)
	if got := p.Rows(); !reflect.DeepEqual(got, []int{1, 3, 0, 2}) {
		t.Fatalf("expected unread first with logical tie order, got %v", got)
	}
	p.Sort(Unsorted, Ascending)
	if got := p.Rows(); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Fatalf("expected logical order, got %v", got)
	}
}

func TestSort_IsNotDynamic(t *testing.T) {
	src := titlesSource("b", "c")
	p := New(src, WithTitleColumn(colTitle))
	p.Sort(colTitle, Ascending)

	src.rows = append(src.rows, fakeRow{id: 3, title: "a"})
	if p.RowCount() != 2 {
		t.Fatalf("view must not change before Refresh, got %d rows", p.RowCount())
	}

	p.Refresh()
	if got := viewTitles(p); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order after refresh: %v", got)
	}
}

func TestFilter_DropsRowsAndMappingSkipsThem(t *testing.T) {
	p := New(titlesSource("Go release", "Rust news", "go modules", "Zig"), WithTitleColumn(colTitle))
	p.SetFilter(Filter{Text: "GO", Column: colTitle, Role: RoleDisplay})

	if got := viewTitles(p); !reflect.DeepEqual(got, []string{"Go release", "go modules"}) {
		t.Fatalf("unexpected filtered titles: %v", got)
	}
	if got := p.MapToView([]int{0, 1, 2, 3}); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("expected filtered rows to be dropped, got %v", got)
	}
	if got := p.MapToLogical([]int{1, 0, 7}); !reflect.DeepEqual(got, []int{2, 0}) {
		t.Fatalf("unexpected logical mapping: %v", got)
	}
	if _, ok := p.ViewRow(1); ok {
		t.Fatal("filtered row must have no view position")
	}
}

func TestFilter_AnyColumnUsesDisplayRole(t *testing.T) {
	src := &fakeSource{rows: []fakeRow{
		{id: 1, title: "alpha", created: 7},
		{id: 2, title: "beta", created: 8},
	}}
	p := New(src)
	p.SetFilter(Filter{Text: "day 8", Column: AnyColumn, Role: RoleDisplay})
	if got := p.Rows(); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("unexpected rows: %v", got)
	}

	p.SetFilter(Filter{})
	if p.RowCount() != 2 {
		t.Fatalf("empty filter must keep all rows, got %d", p.RowCount())
	}
}

func TestFilterAndSort_AreIdempotent(t *testing.T) {
	p := New(titlesSource("delta", "Alpha", "charlie", "alpha", "Bravo"), WithTitleColumn(colTitle))
	f := Filter{Text: "a", Column: colTitle, Role: RoleDisplay}

	p.SetFilter(f)
	p.Sort(colTitle, Ascending)
	first := p.Rows()

	p.SetFilter(f)
	p.Sort(colTitle, Ascending)
	if got := p.Rows(); !reflect.DeepEqual(got, first) {
		t.Fatalf("re-applying filter and sort changed view: %v != %v", got, first)
	}
}

func TestNew_NilSource(t *testing.T) {
	p := New(nil)
	if p.RowCount() != 0 {
		t.Fatalf("expected empty view, got %d", p.RowCount())
	}
	if got := p.Match(0, colTitle, "x", Unbounded, MatchOptions{Wrap: true}); len(got) != 0 {
		t.Fatalf("expected no hits, got %v", got)
	}
}

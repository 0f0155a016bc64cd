package msglist

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Compare orders logical rows a and b by the active sort column and
// direction. The title column uses locale collation; other columns use the
// natural order of their sort values, strings case-insensitively.
func (p *Projection) Compare(a, b int) int {
	if p.sortColumn == Unsorted {
		return a - b
	}
	va := p.source.Value(a, p.sortColumn, RoleSort)
	vb := p.source.Value(b, p.sortColumn, RoleSort)

	var c int
	if p.sortColumn == p.titleColumn {
		sa, _ := p.coerce(va)
		sb, _ := p.coerce(vb)
		c = p.collator.CompareString(sa, sb)
	} else {
		c = compareValues(va, vb)
	}
	if p.order == Descending {
		return -c
	}
	return c
}

func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if ia, ok := integer(a); ok {
		if ib, ok := integer(b); ok {
			return cmp.Compare(ia, ib)
		}
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return cmp.Compare(fa, fb)
		}
	}

	switch x := a.(type) {
	case bool:
		if y, ok := b.(bool); ok {
			return cmpBool(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return compareFolded(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareFolded(a, b string) int {
	fold := cases.Fold()
	if c := strings.Compare(fold.String(a), fold.String(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

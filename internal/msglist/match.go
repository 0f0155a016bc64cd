package msglist

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

type MatchMode int

const (
	// MatchContains is the default mode.
	MatchContains MatchMode = iota
	// MatchExactly compares values without converting them to text.
	MatchExactly
	// MatchRegExp requires the whole cell text to match the expression.
	MatchRegExp
	// MatchWildcard requires the whole cell text to match a glob pattern.
	MatchWildcard
	MatchStartsWith
	MatchEndsWith
	// MatchFixedString compares whole texts.
	MatchFixedString
)

var modeNames = map[MatchMode]string{
	MatchContains:    "contains",
	MatchExactly:     "exact",
	MatchRegExp:      "regexp",
	MatchWildcard:    "wildcard",
	MatchStartsWith:  "starts",
	MatchEndsWith:    "ends",
	MatchFixedString: "fixed",
}

func (m MatchMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

func ParseMatchMode(raw string) (MatchMode, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return MatchContains, nil
	}
	for mode, name := range modeNames {
		if name == raw {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown match mode: %s", raw)
}

type MatchOptions struct {
	Mode MatchMode
	Role Role
	// Wrap continues the scan from the first row up to the start row.
	Wrap bool
}

// Match returns view rows whose cell in column matches value, scanning from
// start to the last row and then, with Wrap, from the first row up to start.
// At most hits rows are returned unless hits is negative. Text modes ignore
// case. Cells are always read from the source row currently mapped to the
// view row.
func (p *Projection) Match(start, column int, value any, hits int, opts MatchOptions) []int {
	rows := len(p.view)
	if start < 0 {
		start = 0
	}
	if start > rows {
		start = rows
	}

	m := newMatcher(opts.Mode, value, p.coerce)
	unbounded := hits < 0
	var out []int

	from, to := start, rows
	passes := 1
	if opts.Wrap {
		passes = 2
	}
	for pass := 0; pass < passes; pass++ {
		for v := from; v < to && (unbounded || len(out) < hits); v++ {
			l := p.view[v]
			if l >= p.source.RowCount() {
				continue
			}
			if m.match(p.source.Value(l, column, opts.Role)) {
				out = append(out, v)
			}
		}
		from, to = 0, start
	}
	return out
}

type matcher struct {
	mode   MatchMode
	value  any
	text   string
	re     *regexp.Regexp
	fold   cases.Caser
	coerce func(any) (string, bool)
}

func newMatcher(mode MatchMode, value any, coerce func(any) (string, bool)) *matcher {
	m := &matcher{mode: mode, value: value, coerce: coerce, fold: cases.Fold()}
	if mode == MatchExactly {
		return m
	}

	text, ok := coerce(value)
	if !ok {
		text = fmt.Sprint(value)
	}
	switch mode {
	case MatchRegExp:
		// An invalid expression matches nothing.
		m.re, _ = regexp.Compile("(?is)^(?:" + text + ")$")
	case MatchWildcard:
		m.re, _ = regexp.Compile(wildcardPattern(text))
	default:
		m.text = m.fold.String(text)
	}
	return m
}

func (m *matcher) match(v any) bool {
	if m.mode == MatchExactly {
		return equalValues(m.value, v)
	}
	s, ok := m.coerce(v)
	if !ok {
		return false
	}

	switch m.mode {
	case MatchRegExp, MatchWildcard:
		return m.re != nil && m.re.MatchString(s)
	case MatchStartsWith:
		return strings.HasPrefix(m.fold.String(s), m.text)
	case MatchEndsWith:
		return strings.HasSuffix(m.fold.String(s), m.text)
	case MatchFixedString:
		return m.fold.String(s) == m.text
	default:
		return strings.Contains(m.fold.String(s), m.text)
	}
}

// wildcardPattern converts a glob with *, ? and [set] into an anchored,
// case-insensitive regular expression.
func wildcardPattern(glob string) string {
	rs := []rune(glob)
	var b strings.Builder
	b.WriteString("(?is)^")
	for i := 0; i < len(rs); i++ {
		switch r := rs[i]; r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			if j < len(rs) && (rs[j] == '!' || rs[j] == '^') {
				j++
			}
			if j < len(rs) && rs[j] == ']' {
				j++
			}
			for j < len(rs) && rs[j] != ']' {
				j++
			}
			if j >= len(rs) {
				b.WriteString(`\[`)
				continue
			}
			set := rs[i+1 : j]
			b.WriteByte('[')
			if len(set) > 0 && (set[0] == '!' || set[0] == '^') {
				b.WriteByte('^')
				set = set[1:]
			}
			for _, c := range set {
				if c == '\\' || c == '[' || c == ']' {
					b.WriteByte('\\')
				}
				b.WriteRune(c)
			}
			b.WriteByte(']')
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func equalValues(a, b any) bool {
	if ia, ok := integer(a); ok {
		if ib, ok := integer(b); ok {
			return ia == ib
		}
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

package message

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/glabrego/reeder/internal/msglist"
)

// Table is an in-memory list of messages. Rows are stable: a row keeps its
// index until the table is replaced.
type Table struct {
	messages []Message
	text     []string
}

func NewTable(messages []Message) *Table {
	t := &Table{}
	for _, m := range messages {
		t.Append(m)
	}
	return t
}

func (t *Table) Append(m Message) int {
	t.messages = append(t.messages, m)
	t.text = append(t.text, PlainText(m.Contents))
	return len(t.messages) - 1
}

func (t *Table) Message(row int) (Message, bool) {
	if row < 0 || row >= len(t.messages) {
		return Message{}, false
	}
	return t.messages[row], true
}

// Set replaces the message at row. Projections over the table keep their
// order until refreshed.
func (t *Table) Set(row int, m Message) bool {
	if row < 0 || row >= len(t.messages) {
		return false
	}
	t.messages[row] = m
	t.text[row] = PlainText(m.Contents)
	return true
}

func (t *Table) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

func (t *Table) RowCount() int    { return len(t.messages) }
func (t *Table) ColumnCount() int { return ColumnCount }

func (t *Table) RowID(row int) int64 {
	return t.messages[row].ID
}

func (t *Table) Value(row, column int, role msglist.Role) any {
	if row < 0 || row >= len(t.messages) {
		return nil
	}
	m := t.messages[row]
	switch column {
	case ColumnID:
		return m.ID
	case ColumnRead:
		return m.Read
	case ColumnDeleted:
		return m.Deleted
	case ColumnImportant:
		return m.Important
	case ColumnFeed:
		if m.FeedTitle == "" {
			if role == msglist.RoleSort {
				return m.FeedID
			}
			return strconv.FormatInt(m.FeedID, 10)
		}
		return m.FeedTitle
	case ColumnTitle:
		return m.Title
	case ColumnURL:
		return m.URL
	case ColumnAuthor:
		return m.Author
	case ColumnCreated:
		if role == msglist.RoleSort {
			return m.Created.Unix()
		}
		if m.Created.IsZero() {
			return ""
		}
		return m.Created.Format(CreatedLayout)
	case ColumnContents:
		if role == msglist.RoleSort {
			return m.Contents
		}
		return t.text[row]
	}
	return nil
}

// Projection returns a view over the table with the title column collated
// for locale and ids searchable as text.
func (t *Table) Projection(locale language.Tag) *msglist.Projection {
	return msglist.New(t,
		msglist.WithTitleColumn(ColumnTitle),
		msglist.WithLocale(locale),
		msglist.WithTextCoercion(TextValue),
	)
}

// TextValue converts string and integer cells to text. Flags are not text.
func TextValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	}
	return "", false
}

// ExactValue converts raw text to the type Value returns for column and role,
// so exact matching can compare ids, flags and timestamps typed.
func ExactValue(column int, role msglist.Role, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch column {
	case ColumnID:
		return parseInt(column, raw)
	case ColumnRead, ColumnDeleted, ColumnImportant:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false: %q", ColumnName(column), raw)
		}
		return b, nil
	case ColumnCreated:
		if role == msglist.RoleSort {
			return parseInt(column, raw)
		}
	}
	return raw, nil
}

func parseInt(column int, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s expects an integer: %q", ColumnName(column), raw)
	}
	return n, nil
}

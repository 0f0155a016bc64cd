// Package message holds feed messages and exposes them as a tabular
// msglist.Source.
package message

import (
	"fmt"
	"strings"
	"time"
)

// CreatedLayout formats the created column for display.
const CreatedLayout = "2006-01-02 15:04"

type Message struct {
	ID        int64
	FeedID    int64
	FeedTitle string
	Title     string
	URL       string
	Author    string
	Contents  string
	Created   time.Time
	Read      bool
	Important bool
	Deleted   bool
}

const (
	ColumnID = iota
	ColumnRead
	ColumnDeleted
	ColumnImportant
	ColumnFeed
	ColumnTitle
	ColumnURL
	ColumnAuthor
	ColumnCreated
	ColumnContents

	// ColumnCount is the number of message columns.
	ColumnCount
)

var columnNames = [ColumnCount]string{
	ColumnID:        "id",
	ColumnRead:      "read",
	ColumnDeleted:   "deleted",
	ColumnImportant: "important",
	ColumnFeed:      "feed",
	ColumnTitle:     "title",
	ColumnURL:       "url",
	ColumnAuthor:    "author",
	ColumnCreated:   "created",
	ColumnContents:  "contents",
}

func ColumnName(column int) string {
	if column < 0 || column >= ColumnCount {
		return ""
	}
	return columnNames[column]
}

// ParseColumn resolves a column name. "any" and "" select every column and
// return -1.
func ParseColumn(raw string) (int, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "any" {
		return -1, nil
	}
	for i, name := range columnNames {
		if name == raw {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown column: %s", raw)
}

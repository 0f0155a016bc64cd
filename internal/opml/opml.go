// Package opml reads and writes OPML subscription lists as item trees.
package opml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/glabrego/reeder/internal/item"
)

var ErrMalformed = errors.New("malformed opml document")

type document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    head     `xml:"head"`
	Body    *body    `xml:"body"`
}

type head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type body struct {
	Outlines []outline `xml:"outline"`
}

type outline struct {
	Text        string    `xml:"text,attr"`
	Title       string    `xml:"title,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	XMLURL      string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL     string    `xml:"htmlUrl,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Outlines    []outline `xml:"outline"`
}

func (o outline) title() string {
	if t := strings.TrimSpace(o.Title); t != "" {
		return t
	}
	return strings.TrimSpace(o.Text)
}

// Parse reads an OPML document into a service-root payload tree. Outlines with
// an xmlUrl become feeds, the rest become categories. Sibling categories with
// the same title are folded into one.
func Parse(r io.Reader) (*item.Node, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Body == nil {
		return nil, fmt.Errorf("%w: missing body", ErrMalformed)
	}

	root := item.NewServiceRoot(strings.TrimSpace(doc.Head.Title))
	for _, o := range doc.Body.Outlines {
		if err := addOutline(root, o); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func addOutline(parent *item.Node, o outline) error {
	if url := strings.TrimSpace(o.XMLURL); url != "" {
		feed := item.NewFeed(o.title(), url)
		feed.Description = strings.TrimSpace(o.Description)
		if err := feed.AttachTo(parent); err != nil {
			return fmt.Errorf("add feed %q: %w", feed.Title, err)
		}
		return nil
	}

	category := item.NewCategory(o.title())
	category.Description = strings.TrimSpace(o.Description)
	if err := category.AttachTo(parent); err != nil {
		if !errors.Is(err, item.ErrDuplicateCategory) {
			return fmt.Errorf("add category %q: %w", category.Title, err)
		}
		category = parent.ChildCategory(category.Title)
	}
	for _, child := range o.Outlines {
		if err := addOutline(category, child); err != nil {
			return err
		}
	}
	return nil
}

// Write encodes the categories and feeds under root as OPML 2.0. Other kinds,
// such as the recycle bin, are left out.
func Write(w io.Writer, root *item.Node, title string, now time.Time) error {
	doc := document{
		Version: "2.0",
		Head:    head{Title: title, DateCreated: now.UTC().Format(time.RFC1123Z)},
		Body:    &body{Outlines: outlines(root)},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write opml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode opml: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write opml: %w", err)
	}
	return nil
}

func outlines(parent *item.Node) []outline {
	if parent == nil {
		return nil
	}
	var out []outline
	for _, child := range parent.Children {
		switch child.Kind {
		case item.KindFeed:
			out = append(out, outline{
				Text:        child.Title,
				Title:       child.Title,
				Type:        "rss",
				XMLURL:      child.URL,
				Description: child.Description,
			})
		case item.KindCategory:
			out = append(out, outline{
				Text:        child.Title,
				Title:       child.Title,
				Description: child.Description,
				Outlines:    outlines(child),
			})
		}
	}
	return out
}

package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// Document is a parsed HTML snapshot of a page.
type Document struct {
	doc *goquery.Document
}

func ParseDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

func (d *Document) QueryAll(selector string) []Element {
	return elements(d.doc.Find(selector))
}

type domElement struct {
	sel *goquery.Selection
}

func elements(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, domElement{sel: s})
	})
	return out
}

func (e domElement) QueryOne(selector string) (Element, bool) {
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return domElement{sel: found}, true
}

func (e domElement) QueryAll(selector string) []Element {
	return elements(e.sel.Find(selector))
}

func (e domElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Text returns the element text in NFC with whitespace runs collapsed, which
// is close to what the browser's innerText reports for card markup. Sellers
// paste decomposed umlauts ("a" + U+0308) often enough to matter for the
// German keyword patterns.
func (e domElement) Text() string {
	return norm.NFC.String(strings.Join(strings.Fields(e.sel.Text()), " "))
}

package scraper

import (
	"strconv"
	"strings"

	"rental_scrooper/models"
)

const searchPath = "/s-wohnung-mieten/"

// BuildSearchURL renders the search result URL for one page of a filter:
//
//	{base}/s-wohnung-mieten/{postal}[/preis:{min}:{max}][/seite:{page}]/{category}{locationId}r{radius}
//
// The price segment is only present when at least one bound is set, the page
// segment only for pages after the first.
func BuildSearchURL(baseURL string, f models.SearchFilter, page int) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString(searchPath)
	b.WriteString(f.PostalCode)

	if f.MinPrice != nil || f.MaxPrice != nil {
		b.WriteString("/preis:")
		if f.MinPrice != nil {
			b.WriteString(strconv.Itoa(*f.MinPrice))
		}
		b.WriteString(":")
		if f.MaxPrice != nil {
			b.WriteString(strconv.Itoa(*f.MaxPrice))
		}
	}

	if page > 1 {
		b.WriteString("/seite:")
		b.WriteString(strconv.Itoa(page))
	}

	b.WriteString("/")
	b.WriteString(f.Category)
	b.WriteString(f.LocationID)
	b.WriteString("r")
	b.WriteString(strconv.Itoa(f.Radius))
	return b.String()
}

package scraper

import (
	"fmt"
	"strings"

	"rental_scrooper/identity"
	"rental_scrooper/models"
	"rental_scrooper/normalize"
)

const (
	// Promoted and pro-seller cards carry these classes and are never listings
	// of the searched area.
	cardSelector = ".ad-listitem:not(.is-topad):not(.badge-hint-pro-small-srp)"

	// Waited on before extraction; the unfiltered list item is enough to know
	// the result list rendered.
	listSelector = ".ad-listitem"

	articleSelector     = "article"
	titleSelector       = "h2.text-module-begin a.ellipsis"
	priceSelector       = "p.aditem-main--middle--price-shipping--price"
	oldPriceSelector    = "span.aditem-main--middle--price-shipping--old-price"
	descriptionSelector = "p.aditem-main--middle--description"
	locationSelector    = ".aditem-main--top--left"
)

// Sub-regions of a card searched for detail fields, in priority order.
var detailSelectors = []string{
	"ul.addetailslist--split li.addetailslist--detail",
	".aditem-main--top--left",
	".aditem-details",
	".simpletag",
	"li",
}

// Extract reads all listing cards of the loaded page. expectedCategory is
// the filter's category ("c203"); empty disables category filtering.
func Extract(page Page, expectedCategory, baseURL string) ([]models.RawListingRecord, error) {
	cards, err := page.QueryAll(cardSelector)
	if err != nil {
		return nil, fmt.Errorf("query listing cards: %w", err)
	}
	return ExtractCards(cards, expectedCategory, baseURL), nil
}

// ExtractCards turns card elements into raw records in DOM order. Cards
// without an ad id or detail link, and cards of a different category, are
// dropped.
func ExtractCards(cards []Element, expectedCategory, baseURL string) []models.RawListingRecord {
	expected := ""
	if expectedCategory != "" {
		expected = identity.NormalizeCategoryID(expectedCategory)
	}

	records := make([]models.RawListingRecord, 0, len(cards))
	for _, card := range cards {
		rec, ok := extractCard(card, expected, baseURL)
		if ok {
			records = append(records, rec)
		}
	}
	return records
}

func extractCard(card Element, expectedCategory, baseURL string) (models.RawListingRecord, bool) {
	article, ok := card.QueryOne(articleSelector)
	if !ok {
		return models.RawListingRecord{}, false
	}

	adID, _ := article.Attr("data-adid")
	href, _ := article.Attr("data-href")
	adID = strings.TrimSpace(adID)
	href = strings.TrimSpace(href)
	if adID == "" || href == "" {
		return models.RawListingRecord{}, false
	}

	if expectedCategory != "" {
		if category := identity.CategoryFromDetailURL(href); category != "" && category != expectedCategory {
			return models.RawListingRecord{}, false
		}
	}

	rec := models.RawListingRecord{
		ExternalID:  adID,
		URL:         absoluteURL(baseURL, href),
		Title:       textOf(card, titleSelector),
		Description: textOf(card, descriptionSelector),
		Location:    textOf(card, locationSelector),
	}
	rec.PriceText, rec.OldPriceText = prices(card)

	candidates := detailCandidates(card, rec.Title)
	rec.RoomsText = firstMatch(candidates, normalize.MatchRooms)
	rec.RentalSpaceText = firstMatch(candidates, normalize.MatchArea)
	rec.AvailableFrom = firstMatch(candidates, normalize.ExtractAvailableFrom)

	return rec, true
}

// prices returns the current and old price. When the old price is rendered
// inside the price paragraph its text is cut out of the current price.
func prices(card Element) (string, string) {
	price := textOf(card, priceSelector)
	old := textOf(card, oldPriceSelector)
	if old != "" {
		price = strings.TrimSpace(strings.Replace(price, old, "", 1))
	}
	return price, old
}

func detailCandidates(card Element, title string) []string {
	var texts []string
	for _, sel := range detailSelectors {
		for _, el := range card.QueryAll(sel) {
			if t := el.Text(); t != "" {
				texts = append(texts, t)
			}
		}
	}
	if t := card.Text(); t != "" {
		texts = append(texts, t)
	}
	if title != "" {
		texts = append(texts, title)
	}
	return texts
}

func firstMatch(texts []string, match func(string) *string) *string {
	for _, t := range texts {
		if v := match(t); v != nil {
			return v
		}
	}
	return nil
}

func textOf(el Element, selector string) string {
	found, ok := el.QueryOne(selector)
	if !ok {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
}

// Package normalize turns scraped card text into typed listing fields.
// Every function here is total: input that cannot be parsed yields nil.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Label, optional separator, then an amount with the currency before or
// after it.
const labeledCostPattern = `(?i)(?:%s)\s*[:=-]?\s*(€|EUR|Euro)?\s*(\d[\d.,]*)\s*(€|EUR|Euro)?`

var (
	numberRegex = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

	// The room word has to follow the number directly (space or hyphen
	// allowed), so counts of compounds like "2 Schlafzimmer" or
	// "1 Badezimmer" never match.
	roomRegex = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)[\s-]*(zimmer|zi\.?)(\pL*)`)
	areaRegex = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:m²|m2|qm)`)

	availableRegex = regexp.MustCompile(`(?i)\bab\s*:?\s*(sofort|\d{1,2}\.\d{1,2}\.(?:\d{4}|\d{2})|\d{1,2}/\d{4})`)

	additionalCostRegex = labeledCostRegex("Nebenkosten", "Betriebskosten")
	depositRegex        = labeledCostRegex("Kaution", "Mietkaution")

	priceNoise = []string{"€", "EUR", "Euro", "VB", " ", "\u00a0", "\u202f"}
)

// Price parses rent-like values ("1.396 €", "950 € VB") to whole euros.
func Price(s string) *int {
	v := amount(s)
	if v == nil {
		return nil
	}
	rounded := int(math.Round(*v))
	return &rounded
}

// Cost parses additional costs and deposits, keeping cents.
func Cost(s string) *float64 {
	return amount(s)
}

// amount strips currency noise and resolves the thousands/decimal separator:
// both present means "." groups and "," is decimal; a lone "," is decimal; a
// lone "." groups thousands only when exactly three digits follow the last one.
func amount(s string) *float64 {
	cleaned := strings.TrimSpace(s)
	for _, noise := range priceNoise {
		cleaned = strings.ReplaceAll(cleaned, noise, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || cleaned == "-" {
		return nil
	}

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")
	switch {
	case hasDot && hasComma:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasDot:
		last := cleaned[strings.LastIndex(cleaned, ".")+1:]
		if len(last) == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}

// Area parses living space text like "112 m²" or "65,5".
func Area(s string) *float64 {
	return decimal(s)
}

// Rooms parses room counts like "3,5 Zimmer" or "4".
func Rooms(s string) *float64 {
	return decimal(s)
}

// decimal reads the first number in s, with "," accepted as decimal point.
func decimal(s string) *float64 {
	match := numberRegex.FindString(s)
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// Views keeps only the digits of a view counter ("1.234 Aufrufe").
func Views(s string) *int {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	v, err := strconv.Atoi(b.String())
	if err != nil {
		return nil
	}
	return &v
}

// MatchRooms returns the number text of the first room count in free text
// such as a card title ("3,5-Zimmer-Wohnung" gives "3,5").
func MatchRooms(text string) *string {
	for _, m := range roomRegex.FindAllStringSubmatch(text, -1) {
		word, rest := strings.ToLower(m[2]), strings.ToLower(m[3])
		if rest != "" && !(word == "zimmer" && strings.HasPrefix(rest, "wohnung")) {
			continue
		}
		v := m[1]
		return &v
	}
	return nil
}

// ExtractRooms is MatchRooms parsed with Rooms.
func ExtractRooms(text string) *float64 {
	if m := MatchRooms(text); m != nil {
		return Rooms(*m)
	}
	return nil
}

// MatchArea returns the number text of a living space like "65 m²", "65m2"
// or "65 qm".
func MatchArea(text string) *string {
	m := areaRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v := m[1]
	return &v
}

// ExtractArea is MatchArea parsed with Area.
func ExtractArea(text string) *float64 {
	if m := MatchArea(text); m != nil {
		return Area(*m)
	}
	return nil
}

// ExtractAvailableFrom finds move-in hints ("frei ab 01.03.2025", "ab sofort").
func ExtractAvailableFrom(text string) *string {
	m := availableRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v := m[1]
	if strings.EqualFold(v, "sofort") {
		v = "sofort"
	}
	return &v
}

// ExtractLabeledCost finds the amount following one of labels, e.g.
// "Nebenkosten: 180 €" or "Kaution 2.400,00 €". The amount must carry a
// currency marker, so "Kaution: 3 Monatsmieten" yields nil.
func ExtractLabeledCost(text string, labels ...string) *float64 {
	if len(labels) == 0 {
		return nil
	}
	return matchCost(labeledCostRegex(labels...), text)
}

// ExtractAdditionalCosts reads "Nebenkosten"/"Betriebskosten" amounts.
func ExtractAdditionalCosts(text string) *float64 {
	return matchCost(additionalCostRegex, text)
}

// ExtractDeposit reads "Kaution"/"Mietkaution" amounts.
func ExtractDeposit(text string) *float64 {
	return matchCost(depositRegex, text)
}

func labeledCostRegex(labels ...string) *regexp.Regexp {
	quoted := make([]string, len(labels))
	for i, label := range labels {
		quoted[i] = regexp.QuoteMeta(label)
	}
	return regexp.MustCompile(fmt.Sprintf(labeledCostPattern, strings.Join(quoted, "|")))
}

func matchCost(re *regexp.Regexp, text string) *float64 {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if m[1] == "" && m[3] == "" {
			continue
		}
		if v := amount(strings.TrimRight(m[2], ".,")); v != nil {
			return v
		}
	}
	return nil
}

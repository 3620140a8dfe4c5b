package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"rental_scrooper/models"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		raw  string
		want *int
	}{
		{"1.396 €", models.IntPtr(1396)},
		{"950 €", models.IntPtr(950)},
		{"950 € VB", models.IntPtr(950)},
		{"1.200 € VB", models.IntPtr(1200)},
		{"1.250,50 €", models.IntPtr(1251)},
		{"12.345.678 €", models.IntPtr(12345678)},
		{"VB", nil},
		{"", nil},
		{"-", nil},
		{"Zu verschenken", nil},
	}

	for _, tt := range tests {
		got := Price(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "Price(%q)", tt.raw)
			continue
		}
		if assert.NotNil(t, got, "Price(%q)", tt.raw) {
			assert.Equal(t, *tt.want, *got, "Price(%q)", tt.raw)
		}
	}
}

func TestCost(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"1.200", f(1200)},
		{"1.200,50 €", f(1200.5)},
		{"180,50", f(180.5)},
		{"12.5", f(12.5)},
		{"2.400 EUR", f(2400)},
		{"150 €", f(150)},
		{"", nil},
		{"-", nil},
		{"auf Anfrage", nil},
	}

	for _, tt := range tests {
		got := Cost(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "Cost(%q)", tt.raw)
			continue
		}
		if assert.NotNil(t, got, "Cost(%q)", tt.raw) {
			assert.InDelta(t, *tt.want, *got, 0.0001, "Cost(%q)", tt.raw)
		}
	}
}

func TestAreaAndRooms(t *testing.T) {
	assertFloat(t, f(112), Area("112 m²"))
	assertFloat(t, f(65.5), Area("65,5 m²"))
	assertFloat(t, f(80), Area("80 m2"))
	assertFloat(t, nil, Area(""))
	assertFloat(t, nil, Area("-"))

	assertFloat(t, f(3.5), Rooms("3,5 Zimmer"))
	assertFloat(t, f(2), Rooms("2"))
	assertFloat(t, f(4.5), Rooms("4.5"))
	assertFloat(t, nil, Rooms("keine Angabe"))
}

func TestViews(t *testing.T) {
	v := Views("1.234 Aufrufe")
	if assert.NotNil(t, v) {
		assert.Equal(t, 1234, *v)
	}
	assert.Nil(t, Views(""))
	assert.Nil(t, Views("keine"))
}

func TestExtractRooms(t *testing.T) {
	tests := []struct {
		text string
		want *float64
	}{
		{"3 Zimmer Wohnung", f(3)},
		{"Schöne 3,5-Zimmer-Wohnung mit Balkon", f(3.5)},
		{"2.5 Zi. Whg", f(2.5)},
		{"4 Zi Altbau", f(4)},
		{"Helle 3 Zimmerwohnung", f(3)},
		{"2 Schlafzimmer", nil},
		{"1 Badezimmer mit Wanne", nil},
		{"Wohnung mit 2 Schlafzimmern, insgesamt 4 Zimmer", f(4)},
		{"3 Zimmer, 2 Schlafzimmer", f(3)},
		{"2 Ziegelsteine", nil},
		{"", nil},
	}

	for _, tt := range tests {
		assertFloat(t, tt.want, ExtractRooms(tt.text), tt.text)
	}
}

func TestExtractArea(t *testing.T) {
	tests := []struct {
		text string
		want *float64
	}{
		{"112 m²", f(112)},
		{"ca. 65m2 Wohnfläche", f(65)},
		{"78,5 qm", f(78.5)},
		{"3 Zimmer", nil},
	}

	for _, tt := range tests {
		assertFloat(t, tt.want, ExtractArea(tt.text), tt.text)
	}
}

func TestExtractAvailableFrom(t *testing.T) {
	got := ExtractAvailableFrom("Wohnung frei ab 01.03.2025, Nichtraucher")
	if assert.NotNil(t, got) {
		assert.Equal(t, "01.03.2025", *got)
	}
	got = ExtractAvailableFrom("Ab Sofort bezugsfrei")
	if assert.NotNil(t, got) {
		assert.Equal(t, "sofort", *got)
	}
	assert.Nil(t, ExtractAvailableFrom("Grab 12.12.2024"))
	assert.Nil(t, ExtractAvailableFrom("Keine Angabe"))
}

func TestExtractLabeledCost(t *testing.T) {
	text := "Kaltmiete 800 €, Nebenkosten: 180,50 €, Kaution 2.400 €."
	assertFloat(t, f(180.5), ExtractLabeledCost(text, "Nebenkosten"))
	assertFloat(t, f(2400), ExtractLabeledCost(text, "Kaution"))
	assertFloat(t, nil, ExtractLabeledCost(text, "Heizkosten"))
	assertFloat(t, nil, ExtractLabeledCost(text))

	tests := []struct {
		text string
		want *float64
	}{
		{"Kaution: 3 Monatsmieten", nil},
		{"Kaution 3 MM", nil},
		{"Kaution: 2 Kaltmieten, Nebenkosten extra", nil},
		{"Kaution 2.400,00 €", f(2400)},
		{"Kaution: € 1.500", f(1500)},
		{"Mietkaution 1200 EUR", f(1200)},
		{"Kaution 3 KM, das sind 2.550 Euro. Kaution: 2.550 Euro", f(2550)},
	}
	for _, tt := range tests {
		assertFloat(t, tt.want, ExtractDeposit(tt.text), tt.text)
	}

	assertFloat(t, f(210), ExtractAdditionalCosts("Betriebskosten: 210 € inkl. Heizung"))
	assertFloat(t, nil, ExtractAdditionalCosts("Nebenkosten nach Verbrauch"))
}

func TestListing(t *testing.T) {
	space, rooms, from := "65", "3", "01.04.2025"
	raw := models.RawListingRecord{
		ExternalID:      " 123 ",
		URL:             "https://www.kleinanzeigen.de/s-anzeige/wohnung/123-203-9245",
		Title:           "  3 Zimmer   Wohnung ",
		PriceText:       "950 €",
		Description:     "Nebenkosten 150 €, Kaution 1.900 €",
		RentalSpaceText: &space,
		RoomsText:       &rooms,
		AvailableFrom:   &from,
	}
	sc := models.ScrapeContext{PostalCode: "74072", Category: "c203", LocationID: "l9245", Radius: 5}

	got := Listing(raw, sc)

	assert.Equal(t, "123", got.ExternalID)
	assert.Equal(t, "3 Zimmer Wohnung", got.Title)
	if assert.NotNil(t, got.Price) {
		assert.Equal(t, 950, *got.Price)
	}
	assert.Nil(t, got.OldPrice)
	assertFloat(t, f(65), got.RentalSpace)
	assertFloat(t, f(3), got.Rooms)
	assertFloat(t, f(150), got.AdditionalCosts)
	assertFloat(t, f(1900), got.Deposit)
	assert.Nil(t, got.Views)
	assert.Equal(t, "01.04.2025", got.AvailableFrom)
	assert.Equal(t, "74072", got.PostalCode)
	assert.Equal(t, "c203", got.Category)
	assert.Equal(t, "l9245", got.LocationID)
	assert.Equal(t, 5, got.Radius)
}

func f(v float64) *float64 { return &v }

func assertFloat(t *testing.T, want, got *float64, msgAndArgs ...interface{}) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got, msgAndArgs...)
		return
	}
	if assert.NotNil(t, got, msgAndArgs...) {
		assert.InDelta(t, *want, *got, 0.0001, msgAndArgs...)
	}
}

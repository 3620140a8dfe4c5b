package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"rental_scrooper/models"
)

const testBaseURL = "https://www.kleinanzeigen.de"

func TestBuildSearchURL(t *testing.T) {
	tests := []struct {
		name   string
		filter models.SearchFilter
		page   int
		want   string
	}{
		{
			name:   "no price no page",
			filter: models.SearchFilter{PostalCode: "74072", Category: "c203", LocationID: "l9245", Radius: 5},
			page:   1,
			want:   "https://www.kleinanzeigen.de/s-wohnung-mieten/74072/c203l9245r5",
		},
		{
			name:   "max price only",
			filter: models.SearchFilter{PostalCode: "74072", Category: "c203", LocationID: "l9245", Radius: 5, MaxPrice: models.IntPtr(1000)},
			page:   1,
			want:   "https://www.kleinanzeigen.de/s-wohnung-mieten/74072/preis::1000/c203l9245r5",
		},
		{
			name:   "min price only",
			filter: models.SearchFilter{PostalCode: "10115", Category: "c203", Radius: 10, MinPrice: models.IntPtr(500)},
			page:   1,
			want:   "https://www.kleinanzeigen.de/s-wohnung-mieten/10115/preis:500:/c203r10",
		},
		{
			name:   "both prices and later page",
			filter: models.SearchFilter{PostalCode: "74072", Category: "c203", LocationID: "l9245", Radius: 5, MinPrice: models.IntPtr(400), MaxPrice: models.IntPtr(900)},
			page:   3,
			want:   "https://www.kleinanzeigen.de/s-wohnung-mieten/74072/preis:400:900/seite:3/c203l9245r5",
		},
		{
			name:   "page zero treated as first page",
			filter: models.SearchFilter{PostalCode: "74072", Category: "c203", Radius: 5},
			page:   0,
			want:   "https://www.kleinanzeigen.de/s-wohnung-mieten/74072/c203r5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSearchURL(testBaseURL, tt.filter, tt.page))
		})
	}
}

func TestBuildSearchURLIsStable(t *testing.T) {
	f := models.SearchFilter{PostalCode: "74072", Category: "c203", Radius: 5, MaxPrice: models.IntPtr(1000)}

	first := BuildSearchURL(testBaseURL+"/", f, 2)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildSearchURL(testBaseURL, f, 2))
	}
	assert.NotContains(t, BuildSearchURL(testBaseURL, models.SearchFilter{PostalCode: "1", Category: "c203", Radius: 1}, 1), "preis")
}

package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"rental_scrooper/models"
)

func TestRequestFingerprintIgnoresParamOrder(t *testing.T) {
	a := RequestFingerprint("rentals", map[string]any{
		"postal_code": "74072",
		"radius":      5,
		"max_price":   1000,
	})
	b := RequestFingerprint("rentals", map[string]any{
		"max_price":   1000,
		"radius":      5,
		"postal_code": "74072",
	})

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "rentals:"))
	assert.Len(t, strings.TrimPrefix(a, "rentals:"), 40)
}

func TestRequestFingerprintDistinguishesFilters(t *testing.T) {
	base := models.SearchFilter{PostalCode: "74072", Category: "c203", LocationID: "l9245", Radius: 5, PageCount: 1}

	variants := []models.SearchFilter{
		func() models.SearchFilter { f := base; f.PostalCode = "74074"; return f }(),
		func() models.SearchFilter { f := base; f.Category = "c196"; return f }(),
		func() models.SearchFilter { f := base; f.LocationID = ""; return f }(),
		func() models.SearchFilter { f := base; f.Radius = 10; return f }(),
		func() models.SearchFilter { f := base; f.MinPrice = models.IntPtr(300); return f }(),
		func() models.SearchFilter { f := base; f.MaxPrice = models.IntPtr(1000); return f }(),
		func() models.SearchFilter { f := base; f.PageCount = 2; return f }(),
	}

	baseKey := RequestFingerprint("rentals", base.CacheParams())
	seen := map[string]bool{baseKey: true}
	for _, v := range variants {
		key := RequestFingerprint("rentals", v.CacheParams())
		assert.False(t, seen[key], "filter %+v collides with an earlier key", v)
		seen[key] = true
	}
}

func TestRequestFingerprintSameFilterValues(t *testing.T) {
	first := models.SearchFilter{MaxPrice: models.IntPtr(1000), Radius: 5, PostalCode: "74072", Category: "c203", PageCount: 1}
	second := models.SearchFilter{PostalCode: "74072", Category: "c203", PageCount: 1, Radius: 5, MaxPrice: models.IntPtr(1000)}

	assert.Equal(t,
		RequestFingerprint("rentals", first.CacheParams()),
		RequestFingerprint("rentals", second.CacheParams()))
}

func TestCategoryFromDetailURL(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.kleinanzeigen.de/s-anzeige/helle-wohnung/2876543210-203-9245", "203"},
		{"/s-anzeige/wohnung/1234-c203l9245", "203"},
		{"/s-anzeige/garage/1234-c90l9245", "90"},
		{"/s-anzeige/wohnung/2876543210-203-9245/", "203"},
		{"/s-anzeige/wohnung/2876543210", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryFromDetailURL(tt.link), tt.link)
	}
}

func TestNormalizeCategoryID(t *testing.T) {
	assert.Equal(t, "203", NormalizeCategoryID("c203"))
	assert.Equal(t, "203", NormalizeCategoryID("C203"))
	assert.Equal(t, "203", NormalizeCategoryID("203"))
	assert.Equal(t, "203", NormalizeCategoryID("c203l9245"))
	assert.Equal(t, "", NormalizeCategoryID(""))
}

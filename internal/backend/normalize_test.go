package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"casai-client/internal/models"
)

// ==========================
// Recommendation Normalization Tests
// ==========================

func TestNormalizeRecommendation(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]interface{}
		want   models.Recommendation
	}{
		{
			name: "legacy field names",
			record: map[string]interface{}{
				"item_name":  "Mid-Century Sofa",
				"item_price": "$499",
				"item_img":   "https://cdn.example.com/sofa.jpg",
				"item_url":   "https://shop.example.com/sofa",
			},
			want: models.Recommendation{
				Name:       "Mid-Century Sofa",
				Price:      "$499",
				ImageRef:   "https://cdn.example.com/sofa.jpg",
				ProductURL: "https://shop.example.com/sofa",
			},
		},
		{
			name: "canonical field names",
			record: map[string]interface{}{
				"name":         "Walnut Side Table",
				"price":        "$129",
				"image":        "https://cdn.example.com/table.jpg",
				"product_link": "https://shop.example.com/table",
				"category":     "tables",
				"brand":        "Oakline",
			},
			want: models.Recommendation{
				Name:       "Walnut Side Table",
				Price:      "$129",
				ImageRef:   "https://cdn.example.com/table.jpg",
				ProductURL: "https://shop.example.com/table",
				Category:   "tables",
				Brand:      "Oakline",
			},
		},
		{
			name: "legacy names win when both generations present",
			record: map[string]interface{}{
				"item_name": "Legacy Lamp",
				"name":      "Canonical Lamp",
			},
			want: models.Recommendation{
				Name:  "Legacy Lamp",
				Price: models.FallbackPrice,
			},
		},
		{
			name:   "missing fields get fallbacks",
			record: map[string]interface{}{},
			want: models.Recommendation{
				Name:  models.FallbackItemName,
				Price: models.FallbackPrice,
			},
		},
		{
			name: "numeric price is stringified",
			record: map[string]interface{}{
				"item_name":  "Rug",
				"item_price": float64(89),
			},
			want: models.Recommendation{
				Name:  "Rug",
				Price: "89",
			},
		},
		{
			name: "null and empty values skipped in favor of later keys",
			record: map[string]interface{}{
				"item_url":    nil,
				"product_url": "",
				"url":         "https://shop.example.com/chair",
			},
			want: models.Recommendation{
				Name:       models.FallbackItemName,
				Price:      models.FallbackPrice,
				ProductURL: "https://shop.example.com/chair",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRecommendation(tt.record))
		})
	}
}

func TestNormalizeRecommendations_PreservesOrder(t *testing.T) {
	records := []map[string]interface{}{
		{"item_name": "First"},
		{"item_name": "Second"},
		{"item_name": "Third"},
	}

	out := NormalizeRecommendations(records)

	assert.Len(t, out, 3)
	assert.Equal(t, "First", out[0].Name)
	assert.Equal(t, "Second", out[1].Name)
	assert.Equal(t, "Third", out[2].Name)
}

func TestNormalizeRecommendations_EmptyInput(t *testing.T) {
	assert.Empty(t, NormalizeRecommendations(nil))
	assert.Empty(t, NormalizeRecommendations([]map[string]interface{}{}))
}

// ==========================
// External Link Normalization Tests
// ==========================

func TestNormalizeExternalLink(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]interface{}
		want   models.ExternalLink
	}{
		{
			name: "full record",
			record: map[string]interface{}{
				"title":  "Grey Fabric Sofa",
				"source": "example-shop.com",
				"price":  "$350",
				"link":   "https://example-shop.com/sofa",
				"image":  "https://example-shop.com/sofa.jpg",
			},
			want: models.ExternalLink{
				Title:    "Grey Fabric Sofa",
				Source:   "example-shop.com",
				Price:    "$350",
				URL:      "https://example-shop.com/sofa",
				ImageURL: "https://example-shop.com/sofa.jpg",
			},
		},
		{
			name: "url alias accepted",
			record: map[string]interface{}{
				"title": "Armchair",
				"url":   "https://example-shop.com/armchair",
			},
			want: models.ExternalLink{
				Title: "Armchair",
				URL:   "https://example-shop.com/armchair",
			},
		},
		{
			name:   "missing fields stay empty",
			record: map[string]interface{}{},
			want:   models.ExternalLink{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeExternalLink(tt.record))
		})
	}
}

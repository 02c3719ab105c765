// internal/backend/normalize.go
//
// The similarity and shopping backends have shipped two generations of field
// names. This file is the only place wire shapes are allowed to exist; it
// converts loose records into the closed types in internal/models and never
// fails on a missing field.
package backend

import (
	"fmt"

	"casai-client/internal/models"
)

// pickString returns the first present, non-empty value among keys,
// stringifying scalars the backend occasionally emits as numbers.
func pickString(record map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%v", s)
		}
	}
	return ""
}

// NormalizeRecommendation maps a loose similarity-search record (legacy or
// canonical field names) onto the canonical Recommendation shape, with
// defined fallbacks for absent fields.
func NormalizeRecommendation(record map[string]interface{}) models.Recommendation {
	rec := models.Recommendation{
		Name:       pickString(record, "item_name", "name"),
		Price:      pickString(record, "item_price", "price"),
		ImageRef:   pickString(record, "item_img", "image_ref", "imageRef", "image"),
		ProductURL: pickString(record, "item_url", "product_link", "product_url", "productUrl", "url"),
		Category:   pickString(record, "category"),
		Brand:      pickString(record, "brand"),
	}
	if rec.Name == "" {
		rec.Name = models.FallbackItemName
	}
	if rec.Price == "" {
		rec.Price = models.FallbackPrice
	}
	return rec
}

// NormalizeRecommendations maps a whole response list.
func NormalizeRecommendations(records []map[string]interface{}) []models.Recommendation {
	out := make([]models.Recommendation, 0, len(records))
	for _, record := range records {
		out = append(out, NormalizeRecommendation(record))
	}
	return out
}

// NormalizeExternalLink maps one shopping-search result.
func NormalizeExternalLink(record map[string]interface{}) models.ExternalLink {
	return models.ExternalLink{
		Title:    pickString(record, "title"),
		Source:   pickString(record, "source"),
		Price:    pickString(record, "price"),
		URL:      pickString(record, "link", "url"),
		ImageURL: pickString(record, "image", "imageUrl", "image_url"),
	}
}

// NormalizeExternalLinks maps a whole shopping-search response.
func NormalizeExternalLinks(records []map[string]interface{}) []models.ExternalLink {
	out := make([]models.ExternalLink, 0, len(records))
	for _, record := range records {
		out = append(out, NormalizeExternalLink(record))
	}
	return out
}

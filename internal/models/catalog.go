package models

// Fallbacks substituted during wire-record normalization. Required fields of
// a Recommendation are never empty-by-accident downstream.
const (
	FallbackItemName = "Unknown Item"
	FallbackPrice    = "N/A"
)

// Recommendation is the canonical product record produced by similarity
// search. The heterogeneous wire shapes (legacy and canonical field names)
// are normalized into this one shape at the backend boundary; no component
// past that boundary may depend on wire field names.
type Recommendation struct {
	Name       string `json:"name"`
	Price      string `json:"price"`
	ImageRef   string `json:"imageRef"`
	ProductURL string `json:"productUrl"`
	Category   string `json:"category,omitempty"`
	Brand      string `json:"brand,omitempty"`
}

// Key identifies a recommendation in the wishlist. Products are unique by
// their external URL.
func (r Recommendation) Key() string {
	return r.ProductURL
}

// SavedProduct is a wishlist entry: a Recommendation keyed by ProductURL.
type SavedProduct = Recommendation

// ExternalLink is a single external shopping result. Its lifecycle is
// independent from Recommendation: either list may be empty while the other
// is populated.
type ExternalLink struct {
	Title    string `json:"title"`
	Source   string `json:"source"`
	Price    string `json:"price,omitempty"`
	URL      string `json:"url"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// internal/backend/models.go
package backend

import "io"

// Endpoint paths on the CasAI backend.
const (
	endpointDetect          = "/detect"
	endpointRecommend       = "/recommend/image"
	endpointGoogleSearch    = "/google_search"
	endpointGenerate        = "/generate_new_design"
	endpointGenerateFromRec = "/generate_from_recommendation"
	endpointChat            = "/api/chat"
	endpointHealth          = "/"
)

// detectionRecord is the wire shape of one detection result.
type detectionRecord struct {
	Class   string `json:"class"`
	CropURL string `json:"crop_url"`
}

// RecommendQuery drives a similarity-search request. Exactly one of CropURL
// or Image should be set; Text may accompany either, or stand alone.
type RecommendQuery struct {
	CropURL       string
	ImageFilename string
	Image         io.Reader
	Text          string
}

// GenerateRequest drives a redesign generation call. Prompt always travels;
// recommendation-driven requests additionally carry RecommendationImageURL
// and ItemName, which select the product-replacement endpoint.
type GenerateRequest struct {
	OriginalImagePath      string
	SelectedCropURL        string
	Prompt                 string
	RecommendationImageURL string
	ItemName               string
}

type generateResponse struct {
	GeneratedImage string `json:"generated_image"`
}

// TurnMessage is one history entry sent to the chat endpoint. Images are
// never round-tripped through history, so only role and text travel.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries a full conversation turn. Either a fresh attached
// image or the server-assigned handle of a previously uploaded one.
type ChatRequest struct {
	Messages      []TurnMessage
	ImageFilename string
	Image         io.Reader
	ImageHandle   string
}

// ChatResponse is the chat endpoint's reply. A non-empty ImageFilename means
// the server adopted the attached image and it should be referenced by
// handle from now on.
type ChatResponse struct {
	Response        string                   `json:"response"`
	ImageFilename   string                   `json:"image_filename"`
	Recommendations []map[string]interface{} `json:"recommendations"`
}

// Health reports which backend services are loaded.
type Health struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

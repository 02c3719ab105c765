// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"casai-client/internal/common/config"
	"casai-client/internal/common/errors"
	commonhttp "casai-client/internal/common/http"
	"casai-client/internal/common/logger"
	"casai-client/internal/common/metrics"
	"casai-client/internal/models"
)

// Client is the typed client for the CasAI backend HTTP surface. It owns
// transport concerns only; orchestration lives in internal/session.
type Client struct {
	baseURL        string
	client         *commonhttp.Client
	generateClient *commonhttp.Client
	searchLimiter  *rate.Limiter
	logger         logger.Logger
}

func NewClient(cfg config.BackendConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		client:         commonhttp.NewClient(cfg.TimeoutDuration()),
		generateClient: commonhttp.NewClient(cfg.GenerateTimeoutDuration()),
		// The shopping proxy fronts a metered third-party API; be polite.
		searchLimiter: rate.NewLimiter(rate.Limit(cfg.SearchRatePerSec), cfg.SearchRatePerSec),
		logger: log.With(map[string]interface{}{
			"component": "backend-client",
		}),
	}
}

// Detect uploads an image and returns the furniture candidates found in it.
func (c *Client) Detect(ctx context.Context, filename string, image io.Reader) ([]models.DetectedItem, error) {
	req, err := commonhttp.NewForm().
		File("image", filename, image).
		Request(ctx, c.baseURL+endpointDetect)
	if err != nil {
		return nil, errors.NewDetectionFailedError(err)
	}

	var records []detectionRecord
	if err := c.do(req, c.client, "detect", &records); err != nil {
		return nil, err
	}

	items := make([]models.DetectedItem, 0, len(records))
	for _, r := range records {
		items = append(items, models.DetectedItem{Class: r.Class, CropReference: r.CropURL})
	}

	c.logger.Info("detection completed", map[string]interface{}{
		"filename":  filename,
		"itemCount": len(items),
	})
	return items, nil
}

// Recommend runs a similarity search from a crop reference or a raw image,
// optionally steered by free text. Results come back already normalized.
func (c *Client) Recommend(ctx context.Context, query RecommendQuery) ([]models.Recommendation, error) {
	form := commonhttp.NewForm().
		Field("crop_url", query.CropURL).
		Field("text", query.Text)
	if query.CropURL == "" && query.Image != nil {
		form = form.File("image", query.ImageFilename, query.Image)
	}

	req, err := form.Request(ctx, c.baseURL+endpointRecommend)
	if err != nil {
		return nil, errors.NewRecommendationFailedError(err)
	}

	var records []map[string]interface{}
	if err := c.do(req, c.client, "recommend", &records); err != nil {
		return nil, err
	}

	return NormalizeRecommendations(records), nil
}

// SearchShopping queries the external shopping proxy. Supplementary service:
// callers are expected to tolerate failure here.
func (c *Client) SearchShopping(ctx context.Context, query string) ([]models.ExternalLink, error) {
	if err := c.searchLimiter.Wait(ctx); err != nil {
		return nil, errors.NewExternalSearchFailedError(err)
	}

	body, _ := json.Marshal(map[string]string{"query": query})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpointGoogleSearch, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewExternalSearchFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	var records []map[string]interface{}
	if err := c.do(req, c.client, "google_search", &records); err != nil {
		return nil, err
	}

	return NormalizeExternalLinks(records), nil
}

// GenerateDesign requests a redesign image and returns the base64-encoded
// artifact. Prompt-driven requests go to the free-form endpoint,
// recommendation-driven ones to the product-replacement endpoint.
func (c *Client) GenerateDesign(ctx context.Context, genReq GenerateRequest) (string, error) {
	endpoint := endpointGenerate
	form := commonhttp.NewForm().
		Field("original_image_path", genReq.OriginalImagePath).
		Field("selected_crop_url", genReq.SelectedCropURL).
		Field("prompt", genReq.Prompt)

	if genReq.RecommendationImageURL != "" {
		endpoint = endpointGenerateFromRec
		form = form.
			Field("recommendation_image_url", genReq.RecommendationImageURL).
			Field("item_name", genReq.ItemName)
	}

	req, err := form.Request(ctx, c.baseURL+endpoint)
	if err != nil {
		return "", errors.NewGenerationFailedError(err)
	}

	var resp generateResponse
	if err := c.do(req, c.generateClient, "generate", &resp); err != nil {
		return "", err
	}
	if resp.GeneratedImage == "" {
		return "", errors.NewGenerationFailedError(errNoImage)
	}
	return resp.GeneratedImage, nil
}

// Chat sends one conversation turn: the role+text history plus either a
// fresh image or the server-side handle of one sent earlier.
func (c *Client) Chat(ctx context.Context, chatReq ChatRequest) (*ChatResponse, error) {
	history, err := json.Marshal(chatReq.Messages)
	if err != nil {
		return nil, errors.NewChatFailedError(err)
	}

	form := commonhttp.NewForm().Field("messages", string(history))
	if chatReq.Image != nil {
		form = form.File("image", chatReq.ImageFilename, chatReq.Image)
	} else {
		form = form.Field("image_filename", chatReq.ImageHandle)
	}

	req, err := form.Request(ctx, c.baseURL+endpointChat)
	if err != nil {
		return nil, errors.NewChatFailedError(err)
	}

	var resp ChatResponse
	if err := c.do(req, c.client, "chat", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health probes the backend root for per-service availability flags.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpointHealth, nil)
	if err != nil {
		return nil, errors.NewBackendUnreachableError(endpointHealth, err)
	}

	var health Health
	if err := c.do(req, c.client, "health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// do executes a request, enforces the 2xx contract and decodes the JSON
// body, recording request metrics per operation.
func (c *Client) do(req *http.Request, client *commonhttp.Client, operation string, out interface{}) error {
	start := time.Now()
	resp, err := client.Do(req)
	metrics.SessionRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SessionRequestsFailed.WithLabelValues(operation, string(errors.ErrCodeBackendUnreachable)).Inc()
		return errors.NewBackendUnreachableError(req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.SessionRequestsFailed.WithLabelValues(operation, string(errors.ErrCodeBackendStatus)).Inc()
		return errors.NewBackendStatusError(req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.SessionRequestsFailed.WithLabelValues(operation, string(errors.ErrCodeMalformedResponse)).Inc()
		return errors.NewMalformedResponseError(req.URL.Path, err)
	}

	metrics.SessionRequestsCompleted.WithLabelValues(operation).Inc()
	return nil
}

var errNoImage = stderrors.New("generation produced no image")

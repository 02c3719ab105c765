package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casai-client/internal/common/config"
	"casai-client/internal/common/errors"
	"casai-client/internal/common/logger"
)

// ==========================
// Test Helpers
// ==========================

func createTestConfig(baseURL string) config.BackendConfig {
	return config.BackendConfig{
		BaseURL:          baseURL,
		UploadRoot:       "uploads",
		Timeout:          5000,
		GenerateTimeout:  5000,
		SearchRatePerSec: 100,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(createTestConfig(server.URL), logger.NewTestLogger(t)), server
}

// ==========================
// Detect Tests
// ==========================

func TestClient_Detect(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/detect", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "sofa.jpg", header.Filename)

		json.NewEncoder(w).Encode([]map[string]string{
			{"class": "sofa", "crop_url": "/crops/1.jpg"},
			{"class": "lamp", "crop_url": "/crops/2.jpg"},
		})
	}))

	items, err := client.Detect(context.Background(), "sofa.jpg", bytes.NewReader([]byte("jpeg-bytes")))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "sofa", items[0].Class)
	assert.Equal(t, "/crops/1.jpg", items[0].CropReference)
	assert.Equal(t, "lamp", items[1].Class)
}

func TestClient_Detect_EmptyList(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))

	items, err := client.Detect(context.Background(), "empty-room.jpg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_Detect_ServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))

	_, err := client.Detect(context.Background(), "sofa.jpg", bytes.NewReader([]byte("x")))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBackendStatus, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestClient_Detect_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))

	_, err := client.Detect(context.Background(), "sofa.jpg", bytes.NewReader([]byte("x")))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMalformedResponse, errors.CodeOf(err))
}

func TestClient_Detect_Unreachable(t *testing.T) {
	client := NewClient(createTestConfig("http://127.0.0.1:1"), logger.NewTestLogger(t))

	_, err := client.Detect(context.Background(), "sofa.jpg", bytes.NewReader([]byte("x")))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBackendUnreachable, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}

// ==========================
// Recommend Tests
// ==========================

func TestClient_Recommend_ByCropURL(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/recommend/image", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "/crops/1.jpg", r.FormValue("crop_url"))
		_, _, err := r.FormFile("image")
		assert.Error(t, err, "crop query must not carry a file part")

		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"item_name": "Velvet Sofa", "item_price": "$799", "item_url": "https://shop/sofa"},
		})
	}))

	recs, err := client.Recommend(context.Background(), RecommendQuery{CropURL: "/crops/1.jpg"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Velvet Sofa", recs[0].Name)
	assert.Equal(t, "https://shop/sofa", recs[0].ProductURL)
}

func TestClient_Recommend_ByImageWithText(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "scandinavian style", r.FormValue("text"))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "room.jpg", header.Filename)

		w.Write([]byte("[]"))
	}))

	recs, err := client.Recommend(context.Background(), RecommendQuery{
		ImageFilename: "room.jpg",
		Image:         bytes.NewReader([]byte("jpeg-bytes")),
		Text:          "scandinavian style",
	})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// ==========================
// External Shopping Search Tests
// ==========================

func TestClient_SearchShopping(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/google_search", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sofa", body["query"])

		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"title": "Grey Sofa", "source": "shop.example", "price": "$350", "link": "https://shop.example/sofa"},
		})
	}))

	links, err := client.SearchShopping(context.Background(), "sofa")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "Grey Sofa", links[0].Title)
	assert.Equal(t, "https://shop.example/sofa", links[0].URL)
}

// ==========================
// Generation Tests
// ==========================

func TestClient_GenerateDesign_PromptDriven(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate_new_design", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "uploads/sofa.jpg", r.FormValue("original_image_path"))
		assert.Equal(t, "/crops/1.jpg", r.FormValue("selected_crop_url"))
		assert.Equal(t, "a green velvet sofa", r.FormValue("prompt"))

		json.NewEncoder(w).Encode(map[string]string{"generated_image": "aW1hZ2U="})
	}))

	artifact, err := client.GenerateDesign(context.Background(), GenerateRequest{
		OriginalImagePath: "uploads/sofa.jpg",
		SelectedCropURL:   "/crops/1.jpg",
		Prompt:            "a green velvet sofa",
	})
	require.NoError(t, err)
	assert.Equal(t, "aW1hZ2U=", artifact)
}

func TestClient_GenerateDesign_RecommendationDriven(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate_from_recommendation", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "https://cdn/sofa.jpg", r.FormValue("recommendation_image_url"))
		assert.Equal(t, "Velvet Sofa", r.FormValue("item_name"))
		assert.Equal(t, "Replace the sofa", r.FormValue("prompt"))

		json.NewEncoder(w).Encode(map[string]string{"generated_image": "aW1hZ2U="})
	}))

	artifact, err := client.GenerateDesign(context.Background(), GenerateRequest{
		OriginalImagePath:      "uploads/sofa.jpg",
		SelectedCropURL:        "/crops/1.jpg",
		Prompt:                 "Replace the sofa",
		RecommendationImageURL: "https://cdn/sofa.jpg",
		ItemName:               "Velvet Sofa",
	})
	require.NoError(t, err)
	assert.Equal(t, "aW1hZ2U=", artifact)
}

func TestClient_GenerateDesign_EmptyArtifact(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"generated_image": ""})
	}))

	_, err := client.GenerateDesign(context.Background(), GenerateRequest{
		OriginalImagePath: "uploads/sofa.jpg",
		SelectedCropURL:   "/crops/1.jpg",
		Prompt:            "anything",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGenerationFailed, errors.CodeOf(err))
}

// ==========================
// Chat Tests
// ==========================

func TestClient_Chat_WithImage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var history []TurnMessage
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("messages")), &history))
		require.Len(t, history, 1)
		assert.Equal(t, "user", history[0].Role)

		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "room.jpg", header.Filename)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"response":       "Nice room! Try warmer lighting.",
			"image_filename": "srv_room_01.jpg",
		})
	}))

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages:      []TurnMessage{{Role: "user", Content: "What do you think?"}},
		ImageFilename: "room.jpg",
		Image:         bytes.NewReader([]byte("jpeg-bytes")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Nice room! Try warmer lighting.", resp.Response)
	assert.Equal(t, "srv_room_01.jpg", resp.ImageFilename)
}

func TestClient_Chat_WithHandle(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "srv_room_01.jpg", r.FormValue("image_filename"))
		_, _, err := r.FormFile("image")
		assert.Error(t, err, "handle turns must not re-upload the image")

		json.NewEncoder(w).Encode(map[string]interface{}{"response": "Sure."})
	}))

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages:    []TurnMessage{{Role: "user", Content: "And the rug?"}},
		ImageHandle: "srv_room_01.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sure.", resp.Response)
	assert.Empty(t, resp.ImageFilename)
}

// ==========================
// Health Tests
// ==========================

func TestClient_Health(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"services": map[string]bool{"detection": true, "generation": false},
		})
	}))

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Services["detection"])
	assert.False(t, health.Services["generation"])
}

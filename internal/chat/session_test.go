package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casai-client/internal/backend"
	"casai-client/internal/common/config"
	"casai-client/internal/common/errors"
	"casai-client/internal/common/logger"
	"casai-client/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func newTestChat(t *testing.T, handler http.HandlerFunc, historyLimit int) *Session {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := backend.NewClient(config.BackendConfig{
		BaseURL:          server.URL,
		Timeout:          5000,
		GenerateTimeout:  5000,
		SearchRatePerSec: 100,
	}, logger.NewTestLogger(t))
	return New(client, historyLimit, logger.NewTestLogger(t))
}

func okReply(text string, extra map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"response": text}
		for k, v := range extra {
			body[k] = v
		}
		json.NewEncoder(w).Encode(body)
	}
}

// ==========================
// Turn Tests
// ==========================

func TestChat_FirstTurnUploadsImage(t *testing.T) {
	var gotFilename string
	var gotHistory []backend.TurnMessage
	chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		gotFilename = header.Filename
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("messages")), &gotHistory))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"response":       "Love the natural light in here.",
			"image_filename": "srv_room_01.jpg",
		})
	}, 50)

	require.NoError(t, chat.Attach("room.jpg", []byte("jpeg-bytes")))
	reply, err := chat.Send(context.Background(), "What do you think of my room?")
	require.NoError(t, err)

	assert.Equal(t, "room.jpg", gotFilename)
	require.Len(t, gotHistory, 1)
	assert.Equal(t, models.RoleUser, gotHistory[0].Role)
	assert.Equal(t, "What do you think of my room?", gotHistory[0].Content)

	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Equal(t, "Love the natural light in here.", reply.Text)
	assert.Equal(t, "srv_room_01.jpg", chat.ImageHandle())

	history := chat.History()
	require.Len(t, history, 2)
	assert.True(t, history[0].HasImage)
}

func TestChat_LaterTurnsUseAdoptedHandle(t *testing.T) {
	turn := 0
	var secondTurnHandle string
	var secondTurnHadFile bool
	chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		turn++
		if turn == 1 {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"response":       "First reply.",
				"image_filename": "srv_room_01.jpg",
			})
			return
		}
		secondTurnHandle = r.FormValue("image_filename")
		_, _, err := r.FormFile("image")
		secondTurnHadFile = err == nil
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "Second reply."})
	}, 50)

	require.NoError(t, chat.Attach("room.jpg", []byte("jpeg-bytes")))
	_, err := chat.Send(context.Background(), "First question")
	require.NoError(t, err)

	_, err = chat.Send(context.Background(), "Follow-up question")
	require.NoError(t, err)

	assert.Equal(t, "srv_room_01.jpg", secondTurnHandle)
	assert.False(t, secondTurnHadFile, "adopted handle must replace re-upload")
}

func TestChat_SendWithoutImageFailsBeforeDispatch(t *testing.T) {
	dispatched := false
	chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		dispatched = true
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "never"})
	}, 50)

	_, err := chat.Send(context.Background(), "No image attached")
	assert.True(t, errors.IsValidation(err))
	assert.False(t, dispatched)

	// The attempt still shows up in history, as a failed exchange.
	history := chat.History()
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, failureReply, history[1].Text)
}

func TestChat_BackendFailureAppendsSyntheticReply(t *testing.T) {
	chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "llm offline", http.StatusBadGateway)
	}, 50)

	require.NoError(t, chat.Attach("room.jpg", []byte("jpeg-bytes")))
	reply, err := chat.Send(context.Background(), "Hello?")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeChatFailed, errors.CodeOf(err))

	require.NotNil(t, reply)
	assert.Equal(t, failureReply, reply.Text)

	history := chat.History()
	require.Len(t, history, 2)
	assert.Equal(t, "Hello?", history[0].Text)
	assert.Equal(t, failureReply, history[1].Text)
}

func TestChat_ReplyCarriesNormalizedRecommendations(t *testing.T) {
	chat := newTestChat(t, okReply("Here are some options.", map[string]interface{}{
		"recommendations": []map[string]interface{}{
			{"item_name": "Walnut Table", "item_url": "https://shop/table"},
		},
	}), 50)

	require.NoError(t, chat.Attach("room.jpg", []byte("jpeg-bytes")))
	reply, err := chat.Send(context.Background(), "Suggest a table")
	require.NoError(t, err)

	require.Len(t, reply.Recommendations, 1)
	assert.Equal(t, "Walnut Table", reply.Recommendations[0].Name)
	assert.Equal(t, "https://shop/table", reply.Recommendations[0].ProductURL)
	assert.Equal(t, models.FallbackPrice, reply.Recommendations[0].Price)
}

func TestChat_HistoryLimitTruncatesOldTurns(t *testing.T) {
	var lastHistory []backend.TurnMessage
	chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("messages")), &lastHistory))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response":       "ok",
			"image_filename": "srv_room_01.jpg",
		})
	}, 4)

	require.NoError(t, chat.Attach("room.jpg", []byte("jpeg-bytes")))
	for _, msg := range []string{"one", "two", "three", "four"} {
		_, err := chat.Send(context.Background(), msg)
		require.NoError(t, err)
	}

	// Full history is 8 messages by now; only the limit tail is sent.
	assert.Len(t, lastHistory, 4)
	assert.Equal(t, "four", lastHistory[len(lastHistory)-1].Content)

	// The local history keeps everything regardless.
	assert.Len(t, chat.History(), 8)
}

func TestChat_EmptyTextRejected(t *testing.T) {
	chat := newTestChat(t, okReply("never", nil), 50)

	_, err := chat.Send(context.Background(), "")
	assert.True(t, errors.IsValidation(err))
	assert.Empty(t, chat.History(), "an empty send must not touch the history")
}

func TestChat_ClearAttachment(t *testing.T) {
	chat := newTestChat(t, okReply("never", nil), 50)

	require.NoError(t, chat.Attach("room.jpg", []byte("jpeg-bytes")))
	chat.ClearAttachment()

	_, err := chat.Send(context.Background(), "Anything there?")
	assert.True(t, errors.IsValidation(err))
}

func TestChat_AttachValidation(t *testing.T) {
	chat := newTestChat(t, okReply("never", nil), 50)

	assert.True(t, errors.IsValidation(chat.Attach("", []byte("x"))))
	assert.True(t, errors.IsValidation(chat.Attach("room.jpg", nil)))
}

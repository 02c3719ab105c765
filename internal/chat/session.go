// Package chat implements the turn-based styling conversation. The message
// history is an append-only, truthful log: failed turns stay visible as
// synthetic assistant error messages rather than being rolled back.
package chat

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/uuid"

	"casai-client/internal/backend"
	"casai-client/internal/common/errors"
	"casai-client/internal/common/logger"
	"casai-client/internal/models"
)

const failureReply = "Sorry, I couldn't reach the design assistant. Please try again."

// Session is a turn-based conversational controller. Once the backend
// acknowledges an attached image it assigns a filename handle; later turns
// reference the handle instead of re-uploading the image.
type Session struct {
	backend      *backend.Client
	logger       logger.Logger
	historyLimit int

	mu                sync.Mutex
	messages          []models.ChatMessage
	serverImageHandle *string
	attachedName      string
	attachedImage     []byte
}

func New(client *backend.Client, historyLimit int, log logger.Logger) *Session {
	return &Session{
		backend:      client,
		logger:       log.With(map[string]interface{}{"component": "chat"}),
		historyLimit: historyLimit,
	}
}

// Attach stages an image to accompany the next turn. It replaces any
// previously staged image but not an adopted server-side handle.
func (s *Session) Attach(filename string, image []byte) error {
	if filename == "" || len(image) == 0 {
		return errors.NewValidationError("chat attachment needs a filename and payload")
	}
	s.mu.Lock()
	s.attachedName = filename
	s.attachedImage = image
	s.mu.Unlock()
	return nil
}

// ClearAttachment drops a staged image that has not been sent yet.
func (s *Session) ClearAttachment() {
	s.mu.Lock()
	s.attachedName = ""
	s.attachedImage = nil
	s.mu.Unlock()
}

// Send runs one conversation turn. The user message is appended
// optimistically before dispatch; on failure a synthetic assistant error
// message is appended so the history records what was attempted.
func (s *Session) Send(ctx context.Context, text string) (*models.ChatMessage, error) {
	if text == "" {
		return nil, errors.NewValidationError("chat message text is empty")
	}

	s.mu.Lock()
	hasAttachment := len(s.attachedImage) > 0
	hasHandle := s.serverImageHandle != nil

	s.messages = append(s.messages, models.ChatMessage{
		ID:       uuid.NewString(),
		Role:     models.RoleUser,
		Text:     text,
		HasImage: hasAttachment,
	})

	if !hasAttachment && !hasHandle {
		// The backend requires an image per conversation; fail the turn
		// before dispatch but keep the history truthful.
		s.appendFailureLocked()
		s.mu.Unlock()
		return nil, errors.NewValidationError("chat needs an attached image or a prior image handle")
	}

	req := backend.ChatRequest{Messages: s.turnHistoryLocked()}
	if hasAttachment {
		req.ImageFilename = s.attachedName
		req.Image = bytes.NewReader(s.attachedImage)
	} else {
		req.ImageHandle = *s.serverImageHandle
	}
	s.mu.Unlock()

	resp, err := s.backend.Chat(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Error("chat turn failed", map[string]interface{}{"error": err.Error()})
		reply := s.appendFailureLocked()
		return &reply, errors.NewChatFailedError(err)
	}

	assistant := models.ChatMessage{
		ID:              uuid.NewString(),
		Role:            models.RoleAssistant,
		Text:            resp.Response,
		Recommendations: backend.NormalizeRecommendations(resp.Recommendations),
	}
	s.messages = append(s.messages, assistant)

	if resp.ImageFilename != "" {
		// The server adopted the image; reference it by handle from now on.
		handle := resp.ImageFilename
		s.serverImageHandle = &handle
		s.attachedName = ""
		s.attachedImage = nil
	}

	return &assistant, nil
}

// History returns a copy of the full message log.
func (s *Session) History() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// ImageHandle returns the server-assigned image handle, empty when none has
// been adopted yet.
func (s *Session) ImageHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serverImageHandle == nil {
		return ""
	}
	return *s.serverImageHandle
}

// turnHistoryLocked projects the history to role+text pairs. Images never
// travel through history; the current attachment or handle rides alongside.
func (s *Session) turnHistoryLocked() []backend.TurnMessage {
	start := 0
	if s.historyLimit > 0 && len(s.messages) > s.historyLimit {
		start = len(s.messages) - s.historyLimit
	}
	history := make([]backend.TurnMessage, 0, len(s.messages)-start)
	for _, msg := range s.messages[start:] {
		history = append(history, backend.TurnMessage{Role: msg.Role, Content: msg.Text})
	}
	return history
}

func (s *Session) appendFailureLocked() models.ChatMessage {
	reply := models.ChatMessage{
		ID:   uuid.NewString(),
		Role: models.RoleAssistant,
		Text: failureReply,
	}
	s.messages = append(s.messages, reply)
	return reply
}

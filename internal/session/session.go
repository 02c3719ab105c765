// Package session implements the orchestration core: a stateful controller
// that sequences upload, detection, concurrent search fan-out and redesign
// generation for one room photo at a time.
//
// Cancellation discipline: every upload bumps an epoch counter, and each
// coordinator captures the epoch before dispatching a network call. A
// response whose captured epoch no longer matches the session's is dropped
// without touching state. In-flight calls are never cancelled on the wire.
//
// Known fragility: the original-image path is derived purely from the
// client-visible filename ("<uploadRoot>/<filename>"). If the backend ever
// renames or hashes stored uploads, later generation calls will miss.
package session

import (
	"context"
	"path"
	"sync"
	"sync/atomic"

	"github.com/patrickmn/go-cache"

	"casai-client/internal/backend"
	"casai-client/internal/common/errors"
	"casai-client/internal/common/logger"
	"casai-client/internal/models"
)

// Session owns all per-upload state. It is single-writer per coordinator
// method; the mutex keeps it correct under a concurrent host as well.
type Session struct {
	config  *Config
	backend *backend.Client
	logger  logger.Logger

	// successful external-search responses only, keyed by query
	externalCache *cache.Cache

	mu              sync.Mutex
	epoch           uint64
	filename        string
	image           []byte
	originalPath    *string
	detections      []models.DetectedItem
	selected        int // index into detections, -1 = none
	generationCtx   *models.GenerationContext
	currentArtifact string

	generating atomic.Bool
}

func New(config *Config, client *backend.Client, log logger.Logger) *Session {
	return &Session{
		config:        config,
		backend:       client,
		logger:        log.With(map[string]interface{}{"component": "session"}),
		externalCache: cache.New(config.CacheTTL, 2*config.CacheTTL),
		selected:      -1,
	}
}

// Submit accepts a newly chosen image, supersedes any previous upload and
// synchronously triggers detection. The previous detections, selection,
// generation context and current artifact are all invalidated.
func (s *Session) Submit(ctx context.Context, filename string, image []byte) ([]models.DetectedItem, error) {
	if filename == "" {
		return nil, errors.NewValidationError("upload filename is empty")
	}
	if len(image) == 0 {
		return nil, errors.NewValidationError("upload payload is empty")
	}

	s.mu.Lock()
	s.epoch++
	s.filename = filename
	s.image = image
	original := path.Join(s.config.UploadRoot, filename)
	s.originalPath = &original
	s.detections = nil
	s.selected = -1
	s.generationCtx = nil
	s.currentArtifact = ""
	epoch := s.epoch
	s.mu.Unlock()

	s.logger.Info("upload accepted", map[string]interface{}{
		"filename":          filename,
		"bytes":             len(image),
		"originalImagePath": original,
		"epoch":             epoch,
	})

	return s.Detect(ctx)
}

// Select marks one detected item as the active selection.
func (s *Session) Select(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.detections) {
		return errors.NewValidationError("selection index out of range")
	}
	s.selected = i
	return nil
}

// ClearSelection unsets the active selection; search falls back to the raw
// image.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = -1
	s.mu.Unlock()
}

// Detections returns the current candidate list.
func (s *Session) Detections() []models.DetectedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DetectedItem, len(s.detections))
	copy(out, s.detections)
	return out
}

// Selected returns the active detected item, or nil when none is selected.
func (s *Session) Selected() *models.DetectedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected < 0 || s.selected >= len(s.detections) {
		return nil
	}
	item := s.detections[s.selected]
	return &item
}

// Context returns a copy of the frozen generation context, or nil before the
// first search.
func (s *Session) Context() *models.GenerationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generationCtx == nil {
		return nil
	}
	c := s.generationCtx.Clone()
	return &c
}

// CurrentArtifact returns the base64 artifact of the latest successful
// generation, empty when none exists. There is at most one current artifact;
// each generation replaces it.
func (s *Session) CurrentArtifact() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentArtifact
}

// OriginalImagePath returns the server-side locator of the active upload.
func (s *Session) OriginalImagePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.originalPath == nil {
		return ""
	}
	return *s.originalPath
}

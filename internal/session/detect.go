// internal/session/detect.go
package session

import (
	"bytes"
	"context"

	"casai-client/internal/common/errors"
	"casai-client/internal/common/metrics"
	"casai-client/internal/models"
)

// Detect runs furniture detection for the active upload. One outstanding
// call per image: if a newer upload supersedes this one while the call is in
// flight, the response is discarded and errors.ErrStaleResponse is returned
// (callers treat it as a no-op, not a failure).
//
// A successful call with a non-empty list default-selects index 0. An empty
// list is a valid "no detections" outcome, not an error. Failures are
// recoverable: the caller may invoke Detect again; there is no automatic
// retry.
func (s *Session) Detect(ctx context.Context) ([]models.DetectedItem, error) {
	s.mu.Lock()
	if len(s.image) == 0 {
		s.mu.Unlock()
		return nil, errors.NewValidationError("no uploaded image to detect on")
	}
	epoch := s.epoch
	filename := s.filename
	image := s.image
	s.mu.Unlock()

	items, err := s.backend.Detect(ctx, filename, bytes.NewReader(image))
	if err != nil {
		s.logger.Error("detection failed", map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
		return nil, errors.NewDetectionFailedError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		metrics.StaleResponsesDiscarded.WithLabelValues("detect").Inc()
		s.logger.Debug("discarding stale detection response", map[string]interface{}{
			"responseEpoch": epoch,
			"currentEpoch":  s.epoch,
		})
		return nil, errors.ErrStaleResponse
	}

	s.detections = items
	if len(items) > 0 {
		s.selected = 0
	} else {
		s.selected = -1
		s.logger.Info("no furniture detected", map[string]interface{}{"filename": filename})
	}

	out := make([]models.DetectedItem, len(items))
	copy(out, items)
	return out, nil
}

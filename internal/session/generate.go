// internal/session/generate.go
package session

import (
	"context"
	"fmt"

	"casai-client/internal/backend"
	"casai-client/internal/common/errors"
	"casai-client/internal/common/metrics"
	"casai-client/internal/models"
)

// GenerateInput drives one redesign request. Exactly one of VisionText or
// Recommendation must be set.
type GenerateInput struct {
	VisionText     string
	Recommendation *models.Recommendation
}

// Generate requests a redesign image from the generative backend using the
// frozen generation context.
//
// Preconditions are checked before any network call: the context must carry
// both the original image path and a selected crop reference, and the input
// must name exactly one prompt driver. At most one generation call may be in
// flight per session; concurrent invocations are rejected, not queued.
//
// On success the returned base64 artifact replaces the session's current
// generated image. Failures are terminal for the call; the caller may invoke
// Generate again.
func (s *Session) Generate(ctx context.Context, input GenerateInput) (string, error) {
	if (input.VisionText == "") == (input.Recommendation == nil) {
		return "", errors.NewValidationError("exactly one of visionText or recommendation must be provided")
	}

	s.mu.Lock()
	if s.generationCtx == nil {
		s.mu.Unlock()
		return "", errors.NewValidationError("no generation context: run a search first")
	}
	genCtx := s.generationCtx.Clone()
	epoch := s.epoch
	s.mu.Unlock()

	if err := genCtx.Validate(); err != nil {
		return "", err
	}

	if !s.generating.CompareAndSwap(false, true) {
		metrics.GenerationRejected.Inc()
		return "", errors.NewGenerationInFlightError()
	}
	defer s.generating.Store(false)

	req := backend.GenerateRequest{
		OriginalImagePath: *genCtx.OriginalImagePath,
		SelectedCropURL:   *genCtx.SelectedCropReference,
	}
	if input.Recommendation != nil {
		req.RecommendationImageURL = input.Recommendation.ImageRef
		req.ItemName = input.Recommendation.Name
		req.Prompt = fmt.Sprintf(s.config.PromptTemplate, input.Recommendation.Name)
	} else {
		req.Prompt = input.VisionText
	}

	s.logger.Info("requesting design generation", map[string]interface{}{
		"originalImagePath":    req.OriginalImagePath,
		"recommendationDriven": input.Recommendation != nil,
	})

	artifact, err := s.backend.GenerateDesign(ctx, req)
	if err != nil {
		s.logger.Error("generation failed", map[string]interface{}{"error": err.Error()})
		return "", errors.NewGenerationFailedError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		metrics.StaleResponsesDiscarded.WithLabelValues("generate").Inc()
		return "", errors.ErrStaleResponse
	}
	// Replaces, never appends: there is one current generated image, and
	// prior ones survive only if explicitly saved as projects.
	s.currentArtifact = artifact
	return artifact, nil
}

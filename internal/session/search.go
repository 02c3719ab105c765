// internal/session/search.go
package session

import (
	"bytes"
	"context"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"casai-client/internal/backend"
	"casai-client/internal/common/errors"
	"casai-client/internal/common/metrics"
	"casai-client/internal/models"
)

// SearchResult is the joined outcome of the concurrent search fan-out, plus
// the generation context frozen before either leg was dispatched.
type SearchResult struct {
	Recommendations []models.Recommendation
	ExternalLinks   []models.ExternalLink
	Context         models.GenerationContext
}

// legOutcome captures one leg of the fan-out independently of the other.
// Settle-all: both legs always run to completion; the failure policy is
// applied only after the join.
type legOutcome struct {
	recommendations []models.Recommendation
	links           []models.ExternalLink
	fromCache       bool
	err             error
}

// Search fans out a similarity search and an external shopping search
// concurrently and joins them with independent failure isolation.
//
// The similarity leg queries by crop reference when an item is selected,
// falling back to the raw image. The external leg queries by the free text
// when non-empty, else by the selected item's class; with neither, no
// external call is issued and links resolve to empty.
//
// Failure policy: the similarity leg is the primary result, so its failure
// fails the whole operation and any external result is discarded. An
// external failure only degrades links to empty.
func (s *Session) Search(ctx context.Context, visionText string) (*SearchResult, error) {
	s.mu.Lock()
	if len(s.image) == 0 {
		s.mu.Unlock()
		return nil, errors.NewValidationError("no uploaded image to search from")
	}
	epoch := s.epoch
	filename := s.filename
	image := s.image

	var selected *models.DetectedItem
	if s.selected >= 0 && s.selected < len(s.detections) {
		item := s.detections[s.selected]
		selected = &item
	}

	// Freeze the context before any concurrent sub-call starts so both legs
	// observe identical values.
	frozen := models.GenerationContext{VisionText: visionText}
	if s.originalPath != nil {
		p := *s.originalPath
		frozen.OriginalImagePath = &p
	}
	if selected != nil {
		crop := selected.CropReference
		frozen.SelectedCropReference = &crop
	}
	s.mu.Unlock()

	query := backend.RecommendQuery{Text: visionText}
	if selected != nil {
		query.CropURL = selected.CropReference
	} else {
		query.ImageFilename = filename
		query.Image = bytes.NewReader(image)
	}

	externalQuery := visionText
	if externalQuery == "" && selected != nil {
		externalQuery = selected.Class
	}

	var similarity, external legOutcome
	var g errgroup.Group
	g.Go(func() error {
		similarity.recommendations, similarity.err = s.backend.Recommend(ctx, query)
		return nil
	})
	if externalQuery != "" {
		g.Go(func() error {
			external.links, external.fromCache, external.err = s.searchExternal(ctx, externalQuery)
			return nil
		})
	}
	_ = g.Wait()

	if similarity.err != nil {
		// Primary leg failed: the whole operation fails and the external
		// result, cached or fresh, is dropped on the floor.
		s.logger.Error("similarity search failed", map[string]interface{}{
			"error": similarity.err.Error(),
		})
		return nil, errors.NewRecommendationFailedError(similarity.err)
	}

	links := external.links
	if external.err != nil {
		s.logger.Warn("external search failed, returning empty links", map[string]interface{}{
			"query": externalQuery,
			"error": external.err.Error(),
		})
		links = []models.ExternalLink{}
	} else if externalQuery != "" && !external.fromCache {
		s.externalCache.Set(externalQuery, external.links, cache.DefaultExpiration)
	}
	if links == nil {
		links = []models.ExternalLink{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		metrics.StaleResponsesDiscarded.WithLabelValues("search").Inc()
		return nil, errors.ErrStaleResponse
	}
	frozenCopy := frozen.Clone()
	s.generationCtx = &frozenCopy

	if max := s.config.MaxResults; max > 0 && len(similarity.recommendations) > max {
		similarity.recommendations = similarity.recommendations[:max]
	}

	return &SearchResult{
		Recommendations: similarity.recommendations,
		ExternalLinks:   links,
		Context:         frozen.Clone(),
	}, nil
}

// searchExternal consults the in-process cache before hitting the shopping
// proxy. Only successful responses are ever cached.
func (s *Session) searchExternal(ctx context.Context, query string) ([]models.ExternalLink, bool, error) {
	if cached, ok := s.externalCache.Get(query); ok {
		metrics.ExternalSearchCacheHits.Inc()
		return cached.([]models.ExternalLink), true, nil
	}
	links, err := s.backend.SearchShopping(ctx, query)
	if err != nil {
		return nil, false, err
	}
	return links, false, nil
}

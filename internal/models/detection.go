package models

import (
	"casai-client/internal/common/errors"
)

// DetectedItem is one furniture candidate found in an uploaded image.
// CropReference is a server-relative locator to the cropped sub-image.
type DetectedItem struct {
	Class         string `json:"class"`
	CropReference string `json:"cropReference"`
}

// GenerationContext threads identifying information about the active upload
// from the detection stage to any later generation request, so a redesign
// can be requested without re-uploading. It is immutable-until-replaced:
// only the search orchestrator produces new values, everyone else reads.
//
// The two locator fields are pointers so "unset" cannot be confused with an
// empty path.
type GenerationContext struct {
	OriginalImagePath     *string `json:"originalImagePath"`
	SelectedCropReference *string `json:"selectedCropReference"`
	VisionText            string  `json:"visionText"`
}

// Ready reports whether the context carries everything a generation call
// needs.
func (c GenerationContext) Ready() bool {
	return c.OriginalImagePath != nil && c.SelectedCropReference != nil
}

// Validate returns a ValidationError naming the missing fields, or nil.
func (c GenerationContext) Validate() error {
	switch {
	case c.OriginalImagePath == nil && c.SelectedCropReference == nil:
		return errors.NewValidationError("generation context missing originalImagePath and selectedCropReference")
	case c.OriginalImagePath == nil:
		return errors.NewValidationError("generation context missing originalImagePath")
	case c.SelectedCropReference == nil:
		return errors.NewValidationError("generation context missing selectedCropReference")
	}
	return nil
}

// Clone deep-copies the context so handed-out values cannot alias session
// state.
func (c GenerationContext) Clone() GenerationContext {
	out := GenerationContext{VisionText: c.VisionText}
	if c.OriginalImagePath != nil {
		p := *c.OriginalImagePath
		out.OriginalImagePath = &p
	}
	if c.SelectedCropReference != nil {
		p := *c.SelectedCropReference
		out.SelectedCropReference = &p
	}
	return out
}

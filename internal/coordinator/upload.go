// Package coordinator runs the two request/response steps of the client:
// sending the selected image for ingredient detection and sending the
// ingredient list for recipe suggestions.
package coordinator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"fridgechef/internal/pantry"
)

// IngredientDetector maps an image to ingredient names.
type IngredientDetector interface {
	DetectIngredients(ctx context.Context, img pantry.Image) ([]string, error)
}

// UploadCoordinator sends the selected image to the detection service.
type UploadCoordinator struct {
	detector IngredientDetector
	log      logrus.FieldLogger
}

// NewUploadCoordinator creates an UploadCoordinator.
func NewUploadCoordinator(detector IngredientDetector, log logrus.FieldLogger) *UploadCoordinator {
	return &UploadCoordinator{detector: detector, log: log.WithField("component", "upload")}
}

// Detect performs one detection round trip for the image held in s and
// returns the update that replaces the ingredient list. Nothing is sent when
// no image is selected. Failures are not retried.
func (c *UploadCoordinator) Detect(ctx context.Context, s pantry.State) (pantry.Update, error) {
	if !s.HasImage() {
		return nil, ErrNoImage
	}

	log := c.log.WithFields(logrus.Fields{
		"filename": s.Image.Filename,
		"bytes":    len(s.Image.Data),
	})
	log.Debug("sending image for ingredient detection")

	names, err := c.detector.DetectIngredients(ctx, *s.Image)
	if err != nil {
		log.WithError(err).Error("ingredient detection failed")
		return nil, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}

	log.WithField("count", len(names)).Info("ingredients detected")
	return pantry.Detected(names), nil
}

// DetectIngredients is Detect applied to s. On error s is returned as is.
func (c *UploadCoordinator) DetectIngredients(ctx context.Context, s pantry.State) (pantry.State, error) {
	update, err := c.Detect(ctx, s)
	if err != nil {
		return s, err
	}
	return update(s), nil
}

package coordinator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"fridgechef/internal/pantry"
)

// RecipeRecommender maps ingredient lists to recipe names.
type RecipeRecommender interface {
	RecommendRecipes(ctx context.Context, detected, manual []string) ([]string, error)
}

// RecipeCoordinator sends the ingredient list to the recommendation service.
type RecipeCoordinator struct {
	recommender RecipeRecommender
	log         logrus.FieldLogger
}

// NewRecipeCoordinator creates a RecipeCoordinator.
func NewRecipeCoordinator(recommender RecipeRecommender, log logrus.FieldLogger) *RecipeCoordinator {
	return &RecipeCoordinator{recommender: recommender, log: log.WithField("component", "recipes")}
}

// Recommend performs one recipe lookup for the ingredients in s and returns
// the update that replaces the recipe list.
//
// Manual entries are already folded into s.Ingredients, so the whole list
// goes out as the detected ingredients and the manual list is always empty.
func (c *RecipeCoordinator) Recommend(ctx context.Context, s pantry.State) (pantry.Update, error) {
	if !s.HasIngredients() {
		return nil, ErrNoIngredients
	}

	log := c.log.WithField("ingredients", len(s.Ingredients))
	log.Debug("requesting recipe suggestions")

	names, err := c.recommender.RecommendRecipes(ctx, s.Ingredients, []string{})
	if err != nil {
		log.WithError(err).Error("recipe lookup failed")
		return nil, fmt.Errorf("%w: %w", ErrRecipesFailed, err)
	}

	log.WithField("count", len(names)).Info("recipes received")
	return pantry.Recommended(names), nil
}

// GetRecipes is Recommend applied to s. On error s is returned as is.
func (c *RecipeCoordinator) GetRecipes(ctx context.Context, s pantry.State) (pantry.State, error) {
	update, err := c.Recommend(ctx, s)
	if err != nil {
		return s, err
	}
	return update(s), nil
}

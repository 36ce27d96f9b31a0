// Package kitchen serves ingredient detection and recipe suggestions over
// HTTP, backed by a vision/chat model and a result cache.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fridgechef/internal/recipe"
)

// modelTimeout bounds each call to the model provider.
const modelTimeout = 45 * time.Second

// Provider defines the interface for the model that does the actual work.
type Provider interface {
	DetectIngredients(ctx context.Context, imageData []byte, format string) ([]string, error)
	SuggestRecipes(ctx context.Context, ingredients []string) ([]string, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Provider  Provider
	Store     recipe.Store
	UploadDir string
	Log       logrus.FieldLogger
}

// NewHandler creates a new Handler.
func NewHandler(provider Provider, store recipe.Store, uploadDir string, log logrus.FieldLogger) *Handler {
	return &Handler{Provider: provider, Store: store, UploadDir: uploadDir, Log: log}
}

// UploadResponse is returned by Upload.
type UploadResponse struct {
	Message     string   `json:"message"`
	Filename    string   `json:"filename"`
	Ingredients []string `json:"ingredients"`
}

// RecipeRequest is the body accepted by GetRecipes.
type RecipeRequest struct {
	DetectedIngredients []string `json:"detected_ingredients" binding:"required"`
	ManualIngredients   []string `json:"manual_ingredients" binding:"required"`
}

// RecipeResponse is returned by GetRecipes.
type RecipeResponse struct {
	Recipes []string `json:"recipes"`
}

// Register wires the kitchen routes onto r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.Home)
	r.POST("/upload-image/", h.Upload)
	r.POST("/get-recipes/", h.GetRecipes)
}

// Home reports that the service is up.
func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "fridgechef kitchen is running"})
}

// Upload handles image uploads and detects the ingredients in them.
func (h *Handler) Upload(c *gin.Context) {
	// Source
	file, err := c.FormFile("file")
	if err != nil {
		h.Log.WithError(err).Warn("error getting form file")
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("get form err: %s", err.Error())})
		return
	}

	// Validate file extension
	allowedExtensions := map[string]bool{
		".jpeg": true,
		".jpg":  true,
		".png":  true,
	}
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[extension] {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid file type. Only JPEG, JPG, and PNG images are allowed."})
		return
	}

	// Read the image file into memory
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("open file err: %s", err.Error())})
		return
	}
	defer src.Close()

	imageData, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("read image err: %s", err.Error())})
		return
	}

	imageHash := recipe.GenerateImageHash(imageData)
	log := h.Log.WithFields(logrus.Fields{"image_hash": imageHash, "filename": file.Filename})

	ctx, cancel := context.WithTimeout(c.Request.Context(), modelTimeout)
	defer cancel()

	cached, err := h.Store.GetDetection(ctx, imageHash)
	if err != nil {
		log.WithError(err).Warn("detection cache lookup failed")
	}
	if cached != nil {
		log.Info("detection found in cache")
		c.JSON(http.StatusOK, UploadResponse{Message: "File received", Filename: file.Filename, Ingredients: nonNil(cached.Ingredients)})
		return
	}

	prepared, format, err := prepareImage(imageData)
	if err != nil {
		log.WithError(err).Warn("could not prepare image")
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Could not read the image. Please upload a valid JPEG or PNG file."})
		return
	}

	if _, err := saveImage(h.UploadDir, prepared, imageHash, extension); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("failed to save image: %s", err.Error())})
		return
	}

	log.Info("detection not cached, asking the model")
	ingredients, err := h.Provider.DetectIngredients(ctx, prepared, format)
	if err != nil {
		log.WithError(err).Error("ingredient detection failed")
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"detail": "Ingredient detection timed out"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("Error analyzing image: %s", err.Error())})
		return
	}
	ingredients = nonNil(ingredients)

	if err := h.Store.SaveDetection(ctx, &recipe.Detection{ImageHash: imageHash, Filename: file.Filename, Ingredients: ingredients}); err != nil {
		log.WithError(err).Warn("failed to save detection")
	}

	c.JSON(http.StatusOK, UploadResponse{Message: "File received", Filename: file.Filename, Ingredients: ingredients})
}

// GetRecipes suggests recipes for the union of detected and manual
// ingredients.
func (h *Handler) GetRecipes(c *gin.Context) {
	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": fmt.Sprintf("invalid request: %s", err.Error())})
		return
	}

	all := recipe.Union(req.DetectedIngredients, req.ManualIngredients)
	if len(all) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No ingredients given"})
		return
	}

	key := recipe.IngredientsKey(all)
	log := h.Log.WithFields(logrus.Fields{"ingredients_key": key, "ingredients": len(all)})

	ctx, cancel := context.WithTimeout(c.Request.Context(), modelTimeout)
	defer cancel()

	cached, err := h.Store.GetSuggestion(ctx, key)
	if err != nil {
		log.WithError(err).Warn("suggestion cache lookup failed")
	}
	if cached != nil {
		log.Info("suggestion found in cache")
		c.JSON(http.StatusOK, RecipeResponse{Recipes: nonNil(cached.Recipes)})
		return
	}

	recipes, err := h.Provider.SuggestRecipes(ctx, all)
	if err != nil {
		log.WithError(err).Error("recipe suggestion failed")
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"detail": "Recipe generation timed out"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("Error generating recipes: %s", err.Error())})
		return
	}
	recipes = nonNil(recipes)

	if err := h.Store.SaveSuggestion(ctx, &recipe.Suggestion{IngredientsKey: key, Ingredients: all, Recipes: recipes}); err != nil {
		log.WithError(err).Warn("failed to save suggestion")
	}

	c.JSON(http.StatusOK, RecipeResponse{Recipes: recipes})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"fridgechef/internal/recipe"
)

const (
	detectPrompt  = "You detect ingredients in fridge and pantry photos. List every food ingredient you can see in this image, one per line, with no numbering, quantities or extra commentary."
	recipesPrompt = "You provide creative and easy-to-follow recipes. Suggest 3 recipes based on these ingredients: %s. Reply with only the recipe names, one per line."
)

var (
	ErrEmptyResponse      = errors.New("empty response from Gemini")
	ErrUnexpectedResponse = errors.New("unexpected response format from Gemini")
)

// Client is a client for the Gemini API.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: client.GenerativeModel(model)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// DetectIngredients lists the ingredients visible in the image. format is the
// image subtype, e.g. "png" or "jpeg".
func (c *Client) DetectIngredients(ctx context.Context, imageData []byte, format string) ([]string, error) {
	text, err := c.generate(ctx,
		genai.ImageData(format, imageData),
		genai.Text(detectPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to detect ingredients: %w", err)
	}
	return recipe.ParseList(text), nil
}

// SuggestRecipes returns recipe names for the given ingredients.
func (c *Client) SuggestRecipes(ctx context.Context, ingredients []string) ([]string, error) {
	text, err := c.generate(ctx, genai.Text(fmt.Sprintf(recipesPrompt, strings.Join(ingredients, ", "))))
	if err != nil {
		return nil, fmt.Errorf("failed to suggest recipes: %w", err)
	}
	return recipe.ParseList(text), nil
}

func (c *Client) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// responseText returns the text of the first part of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil ||
		resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", ErrUnexpectedResponse
	}
	return string(text), nil
}

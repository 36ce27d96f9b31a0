package localllm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fridgechef/internal/recipe"
)

const (
	detectPrompt  = "List every food ingredient you can see in this image, one per line, with no numbering, quantities or extra commentary."
	recipesPrompt = "Suggest 3 recipes based on these ingredients: %s. Reply with only the recipe names, one per line."
)

// Client talks to a locally hosted vision model.
type Client struct {
	httpClient *http.Client
	apiURL     string
	model      string
}

// NewClient creates a new client for an OpenAI-compatible chat completions
// endpoint.
func NewClient(apiURL, model string) *Client {
	return &Client{
		httpClient: &http.Client{},
		apiURL:     apiURL,
		model:      model,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// contentPart is either a text part or an image_url part.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateContent sends a prompt, and an image when dataURL is non-empty, and
// returns the model's reply.
func (c *Client) GenerateContent(ctx context.Context, text string, dataURL string) (string, error) {
	parts := []contentPart{{Type: "text", Text: text}}
	if dataURL != "" {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}})
	}

	reqBytes, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: parts}},
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local model returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("no content found in response")
	}
	return chat.Choices[0].Message.Content, nil
}

// DetectIngredients lists the ingredients visible in the image.
func (c *Client) DetectIngredients(ctx context.Context, imageData []byte, format string) ([]string, error) {
	dataURL := fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(imageData))
	responseText, err := c.GenerateContent(ctx, detectPrompt, dataURL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return recipe.ParseList(responseText), nil
}

// SuggestRecipes returns recipe names for the given ingredients.
func (c *Client) SuggestRecipes(ctx context.Context, ingredients []string) ([]string, error) {
	responseText, err := c.GenerateContent(ctx, fmt.Sprintf(recipesPrompt, strings.Join(ingredients, ", ")), "")
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return recipe.ParseList(responseText), nil
}

// Package kitchenapi talks to the ingredient detection and recipe
// recommendation service over HTTP.
package kitchenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fridgechef/internal/pantry"
)

const (
	DefaultUploadPath  = "/upload-image/"
	DefaultRecipesPath = "/get-recipes/"
)

// ErrMalformedResponse is returned when a 2xx response does not carry the
// expected JSON object.
var ErrMalformedResponse = errors.New("malformed response body")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received non-success status code: %d", e.Code)
}

// Config describes where the service lives.
type Config struct {
	BaseURL     string
	UploadPath  string
	RecipesPath string
	// Timeout bounds a single round trip. Zero means no limit.
	Timeout time.Duration
}

// Client implements coordinator.IngredientDetector and
// coordinator.RecipeRecommender.
type Client struct {
	httpClient *http.Client
	uploadURL  string
	recipesURL string
}

// NewClient creates a client for the service described by cfg.
func NewClient(cfg Config) *Client {
	if cfg.UploadPath == "" {
		cfg.UploadPath = DefaultUploadPath
	}
	if cfg.RecipesPath == "" {
		cfg.RecipesPath = DefaultRecipesPath
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		uploadURL:  base + cfg.UploadPath,
		recipesURL: base + cfg.RecipesPath,
	}
}

// UploadResponse is the body returned by the upload endpoint.
type UploadResponse struct {
	Message     string     `json:"message,omitempty"`
	Filename    string     `json:"filename,omitempty"`
	Ingredients *[]*string `json:"ingredients"`
}

// RecipeRequest is the body sent to the recipe endpoint.
type RecipeRequest struct {
	DetectedIngredients []string `json:"detected_ingredients"`
	ManualIngredients   []string `json:"manual_ingredients"`
}

// RecipeResponse is the body returned by the recipe endpoint.
type RecipeResponse struct {
	Recipes *[]*string `json:"recipes"`
}

// DetectIngredients uploads img as the multipart field "file" and returns the
// detected ingredient names.
func (c *Client) DetectIngredients(ctx context.Context, img pantry.Image) ([]string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := img.Filename
	if filename == "" {
		filename = "image"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp UploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return stringList("ingredients", resp.Ingredients)
}

// RecommendRecipes posts both ingredient lists and returns the recipe names.
func (c *Client) RecommendRecipes(ctx context.Context, detected, manual []string) ([]string, error) {
	if detected == nil {
		detected = []string{}
	}
	if manual == nil {
		manual = []string{}
	}
	reqBytes, err := json.Marshal(RecipeRequest{DetectedIngredients: detected, ManualIngredients: manual})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recipesURL, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp RecipeResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return stringList("recipes", resp.Recipes)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: unexpected data after the JSON object", ErrMalformedResponse)
	}
	return nil
}

// stringList requires field to be present and to hold only strings.
func stringList(field string, list *[]*string) ([]string, error) {
	if list == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, field)
	}
	out := make([]string, 0, len(*list))
	for i, item := range *list {
		if item == nil {
			return nil, fmt.Errorf("%w: %s[%d] is null", ErrMalformedResponse, field, i)
		}
		out = append(out, *item)
	}
	return out, nil
}

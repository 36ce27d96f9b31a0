package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgechef/internal/coordinator"
	"fridgechef/internal/pantry"
	"fridgechef/internal/session"
)

// fakeKitchen answers both detection and recipe requests.
type fakeKitchen struct {
	ingredients []string
	recipes     []string
	detectErr   error
	recipesErr  error

	detectCalls  int
	recipesCalls int
	gotImage     pantry.Image
	gotDetected  []string
}

func (f *fakeKitchen) DetectIngredients(ctx context.Context, img pantry.Image) ([]string, error) {
	f.detectCalls++
	f.gotImage = img
	return f.ingredients, f.detectErr
}

func (f *fakeKitchen) RecommendRecipes(ctx context.Context, detected, manual []string) ([]string, error) {
	f.recipesCalls++
	f.gotDetected = detected
	return f.recipes, f.recipesErr
}

func setupRouter(t *testing.T, kitchen *fakeKitchen) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, _ := test.NewNullLogger()
	registry := session.NewRegistry(
		coordinator.NewUploadCoordinator(kitchen, log),
		coordinator.NewRecipeCoordinator(kitchen, log),
		0, session.Options{}, log,
	)

	r := gin.New()
	NewHandler(registry, 1<<20, log).Register(r)
	r.GET("/_healthz", Healthz)
	return r
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func imageRequest(t *testing.T, path, filename string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPut, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var st StateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	return st
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	rr := do(r, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	return decodeState(t, rr).SessionID
}

func TestCreateSession(t *testing.T) {
	r := setupRouter(t, &fakeKitchen{})

	rr := do(r, httptest.NewRequest(http.MethodPost, "/sessions", nil))

	require.Equal(t, http.StatusCreated, rr.Code)
	st := decodeState(t, rr)
	assert.NotEmpty(t, st.SessionID)
	assert.False(t, st.HasImage)
	// Lists are never null on the wire.
	assert.Contains(t, rr.Body.String(), `"ingredients":[]`)
	assert.Contains(t, rr.Body.String(), `"recipes":[]`)
}

func TestUnknownSession(t *testing.T) {
	r := setupRouter(t, &fakeKitchen{})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/sessions/nope", nil),
		httptest.NewRequest(http.MethodDelete, "/sessions/nope", nil),
		httptest.NewRequest(http.MethodPost, "/sessions/nope/detect", nil),
		httptest.NewRequest(http.MethodPost, "/sessions/nope/recipes", nil),
	} {
		rr := do(r, req)
		assert.Equal(t, http.StatusNotFound, rr.Code, req.Method+" "+req.URL.Path)
	}
}

func TestEndSession(t *testing.T) {
	r := setupRouter(t, &fakeKitchen{})
	id := createSession(t, r)

	rr := do(r, httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(r, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFullFlow(t *testing.T) {
	kitchen := &fakeKitchen{
		ingredients: []string{"egg", "rice"},
		recipes:     []string{"Fried Rice"},
	}
	r := setupRouter(t, kitchen)
	id := createSession(t, r)

	rr := do(r, imageRequest(t, "/sessions/"+id+"/image", "fridge.JPG", []byte("\xff\xd8\xff\xe0jpeg")))
	require.Equal(t, http.StatusOK, rr.Code)
	st := decodeState(t, rr)
	assert.True(t, st.HasImage)
	assert.Equal(t, "fridge.JPG", st.ImageFilename)

	rr = do(r, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/detect", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"egg", "rice"}, decodeState(t, rr).Ingredients)
	assert.Equal(t, "fridge.JPG", kitchen.gotImage.Filename)
	assert.Equal(t, "image/jpeg", kitchen.gotImage.ContentType)

	rr = do(r, jsonRequest(http.MethodPost, "/sessions/"+id+"/ingredients", `{"text":"  soy sauce "}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"egg", "rice", "soy sauce"}, decodeState(t, rr).Ingredients)

	rr = do(r, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/recipes", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Fried Rice"}, decodeState(t, rr).Recipes)
	assert.Equal(t, []string{"egg", "rice", "soy sauce"}, kitchen.gotDetected)

	rr = do(r, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	st = decodeState(t, rr)
	assert.Equal(t, []string{"egg", "rice", "soy sauce"}, st.Ingredients)
	assert.Equal(t, []string{"Fried Rice"}, st.Recipes)
}

func TestManualInputBuffer(t *testing.T) {
	r := setupRouter(t, &fakeKitchen{})
	id := createSession(t, r)

	rr := do(r, jsonRequest(http.MethodPut, "/sessions/"+id+"/manual-input", `{"text":"garlic"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "garlic", decodeState(t, rr).ManualInput)

	rr = do(r, jsonRequest(http.MethodPost, "/sessions/"+id+"/ingredients", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	st := decodeState(t, rr)
	assert.Equal(t, []string{"garlic"}, st.Ingredients)
	assert.Empty(t, st.ManualInput)

	// Blank input leaves the list alone.
	rr = do(r, jsonRequest(http.MethodPost, "/sessions/"+id+"/ingredients", `{"text":"   "}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"garlic"}, decodeState(t, rr).Ingredients)

	rr = do(r, jsonRequest(http.MethodPut, "/sessions/"+id+"/manual-input", `{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSelectImage_Rejected(t *testing.T) {
	r := setupRouter(t, &fakeKitchen{})
	id := createSession(t, r)

	rr := do(r, imageRequest(t, "/sessions/"+id+"/image", "notes.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), msgInvalidImageType)

	// Just over the limit but within the multipart allowance
	rr = do(r, imageRequest(t, "/sessions/"+id+"/image", "huge.png", make([]byte, 1<<20+1024)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = do(r, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	assert.False(t, decodeState(t, rr).HasImage)
}

func TestSelectImage_OversizedBodyIsNotRead(t *testing.T) {
	r := setupRouter(t, &fakeKitchen{})
	id := createSession(t, r)

	// Declared length over the limit
	req := imageRequest(t, "/sessions/"+id+"/image", "huge.png", make([]byte, 3<<20))
	rr := do(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	// Unknown length: the body is cut off at the limit
	req = imageRequest(t, "/sessions/"+id+"/image", "huge.png", make([]byte, 3<<20))
	req.ContentLength = -1
	body := &countingReader{r: req.Body}
	req.Body = body
	rr = do(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Less(t, body.n, int64(2<<20))

	rr = do(r, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	assert.False(t, decodeState(t, rr).HasImage)
}

// countingReader records how many bytes were read from the request body.
type countingReader struct {
	r io.ReadCloser
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Close() error { return c.r.Close() }

func TestPreconditions(t *testing.T) {
	kitchen := &fakeKitchen{}
	r := setupRouter(t, kitchen)
	id := createSession(t, r)

	rr := do(r, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/detect", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), msgNoImage)

	rr = do(r, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/recipes", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), msgNoIngredients)

	assert.Zero(t, kitchen.detectCalls)
	assert.Zero(t, kitchen.recipesCalls)
}

func TestFailuresKeepState(t *testing.T) {
	kitchen := &fakeKitchen{
		detectErr:  errors.New("connection refused"),
		recipesErr: errors.New("bad gateway"),
	}
	r := setupRouter(t, kitchen)
	id := createSession(t, r)

	do(r, imageRequest(t, "/sessions/"+id+"/image", "fridge.png", []byte("\x89PNG\r\n\x1a\n")))
	do(r, jsonRequest(http.MethodPost, "/sessions/"+id+"/ingredients", `{"text":"milk"}`))

	rr := do(r, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/detect", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	var body struct {
		Error string        `json:"error"`
		State StateResponse `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, msgDetectionFailed, body.Error)
	assert.Equal(t, []string{"milk"}, body.State.Ingredients)
	assert.NotContains(t, rr.Body.String(), "connection refused")

	rr = do(r, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/recipes", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), msgRecipesFailed)

	assert.Equal(t, 1, kitchen.detectCalls)
	assert.Equal(t, 1, kitchen.recipesCalls)
}

func TestHealthz(t *testing.T) {
	r := setupRouter(t, &fakeKitchen{})

	rr := do(r, httptest.NewRequest(http.MethodGet, "/_healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

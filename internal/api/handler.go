package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fridgechef/internal/coordinator"
	"fridgechef/internal/pantry"
	"fridgechef/internal/session"
)

// User-facing notices.
const (
	msgNoImage          = "Please upload an image first!"
	msgNoIngredients    = "Please add some ingredients first!"
	msgDetectionFailed  = "We couldn't detect ingredients right now. Please try again."
	msgRecipesFailed    = "We couldn't fetch recipes right now. Please try again."
	msgSessionNotFound  = "Session not found"
	msgInvalidImageType = "Invalid file type. Only JPEG, JPG, and PNG images are allowed."
)

// multipartOverhead is the room left above MaxUploadBytes for multipart
// headers and boundaries.
const multipartOverhead = 64 << 10

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

// Sessions defines the session operations the handler needs.
type Sessions interface {
	Create() *session.Session
	Get(id string) (*session.Session, error)
	End(id string) error
}

// Handler handles HTTP requests.
type Handler struct {
	Sessions Sessions
	// MaxUploadBytes caps the size of a selected image.
	MaxUploadBytes int64
	Log            logrus.FieldLogger
}

// NewHandler creates a new Handler.
func NewHandler(sessions Sessions, maxUploadBytes int64, log logrus.FieldLogger) *Handler {
	return &Handler{Sessions: sessions, MaxUploadBytes: maxUploadBytes, Log: log}
}

// StateResponse is the JSON view of a pantry.State.
type StateResponse struct {
	SessionID     string   `json:"session_id"`
	HasImage      bool     `json:"has_image"`
	ImageFilename string   `json:"image_filename,omitempty"`
	Ingredients   []string `json:"ingredients"`
	ManualInput   string   `json:"manual_input"`
	Recipes       []string `json:"recipes"`
}

// TextRequest carries manual input.
type TextRequest struct {
	Text *string `json:"text"`
}

func newStateResponse(id string, st pantry.State) StateResponse {
	resp := StateResponse{
		SessionID:   id,
		HasImage:    st.HasImage(),
		Ingredients: st.Ingredients,
		ManualInput: st.ManualInput,
		Recipes:     st.Recipes,
	}
	if st.Image != nil {
		resp.ImageFilename = st.Image.Filename
	}
	if resp.Ingredients == nil {
		resp.Ingredients = []string{}
	}
	if resp.Recipes == nil {
		resp.Recipes = []string{}
	}
	return resp
}

// Register wires the session routes onto r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions/:id", h.GetState)
	r.DELETE("/sessions/:id", h.EndSession)
	r.PUT("/sessions/:id/image", h.SelectImage)
	r.PUT("/sessions/:id/manual-input", h.SetManualInput)
	r.POST("/sessions/:id/ingredients", h.AddIngredient)
	r.POST("/sessions/:id/detect", h.DetectIngredients)
	r.POST("/sessions/:id/recipes", h.GetRecipes)
}

// CreateSession starts a new session.
func (h *Handler) CreateSession(c *gin.Context) {
	sess := h.Sessions.Create()
	c.JSON(http.StatusCreated, newStateResponse(sess.ID, sess.State()))
}

// GetState returns the current state of a session.
func (h *Handler) GetState(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newStateResponse(sess.ID, sess.State()))
}

// EndSession discards a session.
func (h *Handler) EndSession(c *gin.Context) {
	if err := h.Sessions.End(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": msgSessionNotFound})
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectImage stores the uploaded file as the session's image.
func (h *Handler) SelectImage(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	tooLarge := gin.H{"error": fmt.Sprintf("image is larger than %d bytes", h.MaxUploadBytes)}
	if h.MaxUploadBytes > 0 {
		limit := h.MaxUploadBytes + multipartOverhead
		if c.Request.ContentLength > limit {
			c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	// Source
	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("get form err: %s", err.Error())})
		return
	}

	extension := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[extension] {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidImageType})
		return
	}
	if h.MaxUploadBytes > 0 && file.Size > h.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	imageData, err := readFormFile(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(imageData)
	}

	h.Log.WithFields(logrus.Fields{
		"session_id":   sess.ID,
		"filename":     file.Filename,
		"content_type": contentType,
		"bytes":        len(imageData),
	}).Debug("image selected")

	st := sess.SelectImage(pantry.Image{
		Filename:    filepath.Base(file.Filename),
		ContentType: contentType,
		Data:        imageData,
	})
	c.JSON(http.StatusOK, newStateResponse(sess.ID, st))
}

// SetManualInput replaces the manual input buffer.
func (h *Handler) SetManualInput(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a JSON body with a text field"})
		return
	}
	c.JSON(http.StatusOK, newStateResponse(sess.ID, sess.SetManualInput(*req.Text)))
}

// AddIngredient commits the manual input buffer. A text field in the body
// replaces the buffer first. Blank input is ignored.
func (h *Handler) AddIngredient(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req TextRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid body: %s", err.Error())})
			return
		}
	}

	var st pantry.State
	if req.Text != nil {
		st = sess.AddManual(*req.Text)
	} else {
		st = sess.CommitManualInput()
	}
	c.JSON(http.StatusOK, newStateResponse(sess.ID, st))
}

// DetectIngredients sends the selected image for ingredient detection.
func (h *Handler) DetectIngredients(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	st, err := sess.DetectIngredients(c.Request.Context())
	h.respond(c, sess, st, err)
}

// GetRecipes asks for recipes for the current ingredient list.
func (h *Handler) GetRecipes(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	st, err := sess.GetRecipes(c.Request.Context())
	h.respond(c, sess, st, err)
}

func (h *Handler) respond(c *gin.Context, sess *session.Session, st pantry.State, err error) {
	if err == nil {
		c.JSON(http.StatusOK, newStateResponse(sess.ID, st))
		return
	}

	code, msg := http.StatusBadGateway, ""
	switch {
	case errors.Is(err, coordinator.ErrNoImage):
		code, msg = http.StatusBadRequest, msgNoImage
	case errors.Is(err, coordinator.ErrNoIngredients):
		code, msg = http.StatusBadRequest, msgNoIngredients
	case errors.Is(err, coordinator.ErrDetectionFailed):
		msg = msgDetectionFailed
	case errors.Is(err, coordinator.ErrRecipesFailed):
		msg = msgRecipesFailed
	default:
		code, msg = http.StatusInternalServerError, "unexpected error"
	}
	if !coordinator.IsPrecondition(err) {
		c.Error(err)
	}

	c.JSON(code, gin.H{
		"error": msg,
		"state": newStateResponse(sess.ID, st),
	})
}

func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	sess, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": msgSessionNotFound})
		return nil, false
	}
	return sess, true
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open file err: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read image err: %w", err)
	}
	return data, nil
}

// Healthz reports liveness.
func Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

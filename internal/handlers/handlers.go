package handlers

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/hairstyle-api/internal/analysis"
	"github.com/Brownie44l1/hairstyle-api/internal/logging"
)

// MaxBodySize caps the JSON body of /predict.
const MaxBodySize = 32 << 20

var (
	errNoImage     = errors.New("No image data")
	errInvalidJSON = errors.New("Invalid JSON body")
)

//go:embed web/index.html
var indexPage []byte

// Predictor turns an image data URI into a prediction response.
type Predictor interface {
	Analyze(ctx context.Context, requestID, payload string) (*analysis.Result, error)
}

type Handler struct {
	predictor Predictor
	logger    *zap.Logger
}

func NewHandler(predictor Predictor, logger *zap.Logger) *Handler {
	return &Handler{
		predictor: predictor,
		logger:    logger.Named("handlers"),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Home serves the landing page.
func (h *Handler) Home(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
}

// Predict handles POST /predict with a body of {"image": "data:image/...;base64,..."}.
func (h *Handler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodySize)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, err)
			return
		}
		Error(c, http.StatusBadRequest, err)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		Error(c, http.StatusBadRequest, errInvalidJSON)
		return
	}

	raw, ok := fields["image"]
	if !ok {
		Error(c, http.StatusBadRequest, errNoImage)
		return
	}

	requestID := RequestID(c)
	var payload string
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("image field is not a string", zap.String("request_id", requestID), zap.Error(err))
		Error(c, http.StatusInternalServerError, errors.New("image must be a base64 data URI string"))
		return
	}

	result, err := h.predictor.Analyze(c.Request.Context(), requestID, payload)
	if err != nil {
		h.logger.Error("prediction failed",
			zap.String("request_id", requestID),
			zap.String("operation", logging.Operation(err)),
			zap.Error(err))
		Error(c, http.StatusInternalServerError, logging.Cause(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

// HTTPError is the body of every error response.
type HTTPError struct {
	Error string `json:"error"`
}

// Error writes err as a JSON error response.
func Error(c *gin.Context, status int, err error) {
	c.JSON(status, HTTPError{
		Error: err.Error(),
	})
}

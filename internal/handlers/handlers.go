package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Brownie44l1/ripeness-api/internal/app"
	"github.com/Brownie44l1/ripeness-api/internal/classifier"
	"github.com/Brownie44l1/ripeness-api/internal/db/repository"
	"github.com/Brownie44l1/ripeness-api/internal/filestorage"
	"github.com/Brownie44l1/ripeness-api/internal/preprocess"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	app *app.App
}

func NewHandler(app *app.App) *Handler {
	return &Handler{
		app: app,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) Labels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"labels": h.app.Catalog.Entries()})
}

// Classify takes a multipart upload in the "image" field and an optional
// "threshold" form value.
func (h *Handler) Classify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.app.Config().MaxUploadBytes())

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": fmt.Sprintf("image exceeds %d MB", h.app.Config().MaxUploadMB)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "no image file provided, use 'image' as the form field name"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to read image"})
		return
	}

	threshold, err := h.threshold(c.PostForm("threshold"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	info := filestorage.NewFileInfo(content, header.Filename)
	h.app.Logger.Debug("received image",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("content_type", info.ContentType),
	)

	v := h.app.Classifier.ClassifyWithThreshold(content, threshold)

	resp := ClassifyResponse{Verdict: v}
	rec, err := h.app.Record(c.Request.Context(), v, info)
	if err != nil {
		h.app.Logger.Warn("failed to record classification", zap.Error(err))
	} else if rec != nil {
		resp.ID = rec.ID.String()
	}

	c.JSON(statusFor(v), resp)
}

// Predict classifies an already preprocessed NHWC tensor.
func (h *Handler) Predict(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}

	size := h.app.Classifier.InputSize()
	if expected := size * size * 3; len(req.Image) != expected {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("expected %d values, got %d", expected, len(req.Image))})
		return
	}

	threshold := h.app.Classifier.Threshold()
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "threshold must be between 0 and 1"})
			return
		}
		threshold = *req.Threshold
	}

	v := h.app.Classifier.ClassifyTensor(req.Image, threshold)
	c.JSON(statusFor(v), ClassifyResponse{Verdict: v})
}

func (h *Handler) History(c *gin.Context) {
	if !h.app.HistoryEnabled() {
		c.JSON(http.StatusNotFound, gin.H{"message": "history is disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repository.DefaultListLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
		return
	}

	records, err := h.app.ClassificationRepository.List(c.Request.Context(), limit)
	if err != nil {
		h.app.Logger.Error("failed to list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"classifications": records})
}

func (h *Handler) HistoryByID(c *gin.Context) {
	if !h.app.HistoryEnabled() {
		c.JSON(http.StatusNotFound, gin.H{"message": "history is disabled"})
		return
	}

	rec, err := h.app.ClassificationRepository.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "classification not found"})
			return
		}
		h.app.Logger.Error("failed to get classification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to get classification"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) threshold(raw string) (float64, error) {
	if raw == "" {
		return h.app.Classifier.Threshold(), nil
	}

	t, err := strconv.ParseFloat(raw, 64)
	if err != nil || t < 0 || t > 1 {
		return 0, fmt.Errorf("threshold must be a number between 0 and 1, got %q", raw)
	}
	return t, nil
}

// statusFor maps a verdict to an HTTP status. Invalid verdicts are a normal
// answer about the image, not a request failure.
func statusFor(v classifier.Verdict) int {
	switch v.Status {
	case classifier.StatusOK, classifier.StatusInvalid:
		return http.StatusOK
	}
	if errors.Is(v.Err, preprocess.ErrInvalidImage) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

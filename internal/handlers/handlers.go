package handlers

import (
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/pneumonia-api/internal/apperr"
	"github.com/Brownie44l1/pneumonia-api/internal/diagnosis"
	"github.com/Brownie44l1/pneumonia-api/internal/flow"
	"github.com/Brownie44l1/pneumonia-api/internal/logging"
	"github.com/Brownie44l1/pneumonia-api/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

// TensorPredictor runs the model on an already preprocessed tensor.
type TensorPredictor interface {
	PredictTensor(inputData []float32) (float32, error)
}

type Handler struct {
	flow    *flow.Flow
	tensors TensorPredictor
	logger  *zap.SugaredLogger
}

func NewHandler(f *flow.Flow, tensors TensorPredictor, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		flow:    f,
		tensors: tensors,
		logger:  logger,
	}
}

// PredictionData is the JSON body of a successful /api/predict call.
type PredictionData struct {
	RequestID     string  `json:"request_id"`
	Probability   float32 `json:"probability"`
	Verdict       string  `json:"verdict"`
	Message       string  `json:"message"`
	Style         string  `json:"style"`
	Normal        string  `json:"normal"`
	Pneumonia     string  `json:"pneumonia"`
	ComparisonPNG string  `json:"comparison_png"`
}

// pageResult is what the upload page renders below the form.
type pageResult struct {
	Uploaded    template.URL
	Comparison  template.URL
	Normal      string
	Pneumonia   string
	Probability float32
	Message     string
	Style       string
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}

// Upload handles the browser form and renders the result page.
func (h *Handler) Upload(c *gin.Context) {
	res, err := h.run(c)
	if res == nil {
		c.HTML(http.StatusBadRequest, "index.html", gin.H{"Error": err.Error()})
		return
	}

	page := toPage(res)
	if err != nil {
		c.HTML(statusFor(err), "index.html", gin.H{"Result": page, "Error": err.Error()})
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{"Result": page})
}

// Predict is the JSON variant of Upload.
func (h *Handler) Predict(c *gin.Context) {
	res, err := h.run(c)
	if err != nil {
		status := http.StatusBadRequest
		if res != nil {
			status = statusFor(err)
		}
		respondError(c, status, err.Error(), apperr.StateOf(err))
		return
	}

	respondSuccess(c, PredictionData{
		RequestID:     res.ID,
		Probability:   res.Probability,
		Verdict:       string(res.Verdict),
		Message:       res.Verdict.Message(),
		Style:         res.Verdict.Style(),
		Normal:        res.Normal.Name(),
		Pneumonia:     res.Pneumonia.Name(),
		ComparisonPNG: base64.StdEncoding.EncodeToString(res.Comparison),
	})
}

// PredictTensor accepts an already preprocessed (1, 128, 128, 3) array.
func (h *Handler) PredictTensor(c *gin.Context) {
	var req model.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid JSON", "")
		return
	}

	p, err := h.tensors.PredictTensor(req.Image)
	if err != nil {
		h.logger.Errorf("Prediction error: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrShape) {
			status = http.StatusBadRequest
		}
		respondError(c, status, err.Error(), "")
		return
	}

	v := diagnosis.Decide(p)
	respondSuccess(c, model.PredictionResponse{
		Probability: p,
		Verdict:     string(v),
		Message:     v.Message(),
	})
}

// run reads the "image" form field and drives it through the flow. A nil
// result means the request never reached the flow.
func (h *Handler) run(c *gin.Context) (*flow.Result, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("no image file provided, use 'image' as the form field name")
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	h.logger.Infof("Received file: %s, size: %d bytes", header.Filename, header.Size)

	res, err := h.flow.Run(c.Request.Context(), flow.Upload{Reader: file, Filename: header.Filename})
	if err != nil {
		h.logger.Errorf("Request %s failed: %v", res.ID, err)
	}
	return res, err
}

func toPage(res *flow.Result) pageResult {
	page := pageResult{
		Normal:      res.Normal.Name(),
		Pneumonia:   res.Pneumonia.Name(),
		Probability: res.Probability,
	}
	if len(res.Uploaded) > 0 {
		page.Uploaded = dataURL(res.ContentType, res.Uploaded)
	}
	if len(res.Comparison) > 0 {
		page.Comparison = dataURL("image/png", res.Comparison)
	}
	if res.State == flow.StateCleanupDone {
		page.Message = res.Verdict.Message()
		page.Style = res.Verdict.Style()
	}
	return page
}

func dataURL(contentType string, data []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

package handler

import (
	"encoding/base64"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ageshift/internal/config"
	"ageshift/internal/domain"
	"ageshift/internal/service"
	"ageshift/pkg/imagedata"
)

type Handler struct {
	service service.TransformService
	cfg     *config.Config
	log     *zap.Logger
}

func NewHandler(service service.TransformService, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		cfg:     cfg,
		log:     log,
	}
}

type transformJSONRequest struct {
	Image string `json:"image" binding:"required"`
}

type stageResultResponse struct {
	Stage string `json:"stage"`
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

type historyEntryResponse struct {
	ID         string `json:"id"`
	Original   string `json:"original"`
	Child      string `json:"child"`
	MiddleAged string `json:"middle_aged"`
	Elderly    string `json:"elderly"`
	CreatedAt  string `json:"created_at"`
}

// Transform accepts the source photo either as a multipart "image" file or
// as a JSON body carrying a data URI, runs the three age transformations
// and returns each settled outcome. Partial failures still return 200; the
// client renders successes and error messages side by side.
func (h *Handler) Transform(c *gin.Context) {
	var (
		source domain.EncodedImage
		ok     bool
	)

	if strings.HasPrefix(c.ContentType(), "application/json") {
		source, ok = h.sourceFromJSON(c)
	} else {
		source, ok = h.sourceFromMultipart(c)
	}
	if !ok {
		return
	}

	results, entry, err := h.service.Transform(c.Request.Context(), source)
	if err != nil {
		h.log.Error("Transformation rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out := make([]stageResultResponse, 0, len(results))
	for _, res := range results {
		sr := stageResultResponse{Stage: string(res.Stage)}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		} else {
			sr.Image = imagedata.Format(res.Image.MimeType, res.Image.Data)
		}
		out = append(out, sr)
	}

	resp := gin.H{
		"original": imagedata.Format(source.MimeType, source.Data),
		"results":  out,
	}
	if entry != nil {
		resp["history_id"] = entry.ID
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) sourceFromJSON(c *gin.Context) (domain.EncodedImage, bool) {
	var req transformJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return domain.EncodedImage{}, false
	}

	mimeType, data, err := imagedata.Parse(req.Image)
	if err != nil {
		h.log.Warn("Rejected malformed data URI", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data: " + err.Error()})
		return domain.EncodedImage{}, false
	}

	return domain.EncodedImage{MimeType: mimeType, Data: data}, true
}

func (h *Handler) sourceFromMultipart(c *gin.Context) (domain.EncodedImage, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		h.log.Error("Failed to get file from form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return domain.EncodedImage{}, false
	}

	if file.Size > h.cfg.App.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return domain.EncodedImage{}, false
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !slices.Contains(h.cfg.App.AllowedFormats, ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file format. Allowed: " + strings.Join(h.cfg.App.AllowedFormats, ", ")})
		return domain.EncodedImage{}, false
	}

	src, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
		return domain.EncodedImage{}, false
	}
	defer src.Close()

	buf, err := io.ReadAll(src)
	if err != nil {
		h.log.Error("Failed to read file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return domain.EncodedImage{}, false
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = imagedata.MimeTypeForExt(ext)
	}

	return domain.EncodedImage{
		MimeType: contentType,
		Data:     base64.StdEncoding.EncodeToString(buf),
	}, true
}

func (h *Handler) GetHistory(c *gin.Context) {
	entries, err := h.service.History(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list history"})
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			ID:         e.ID,
			Original:   imagedata.Format(e.Original.MimeType, e.Original.Data),
			Child:      imagedata.Format(e.Child.MimeType, e.Child.Data),
			MiddleAged: imagedata.Format(e.MiddleAged.MimeType, e.MiddleAged.Data),
			Elderly:    imagedata.Format(e.Elderly.MimeType, e.Elderly.Data),
			CreatedAt:  e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"history": out})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) GetUI(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}

// Package gemini is the adapter for the Gemini generateContent endpoint:
// one image plus one instruction in, exactly one image or one classified
// failure out.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"ageshift/internal/config"
	"ageshift/internal/domain"
)

// ImageEditor issues a single multimodal edit request. One-shot: no retries,
// no streaming; the HTTP client's overall timeout is the only deadline.
type ImageEditor interface {
	EditImage(ctx context.Context, req domain.TransformationRequest) (domain.EncodedImage, error)
}

type Client struct {
	cfg    *config.GeminiConfig
	client *http.Client
	log    *zap.Logger
}

func NewClient(cfg *config.GeminiConfig, log *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

const finishReasonStop = "STOP"

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
	Role  string         `json:"role,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type safetyRating struct {
	Category    string `json:"category,omitempty"`
	Probability string `json:"probability,omitempty"`
	Blocked     bool   `json:"blocked,omitempty"`
}

type candidate struct {
	Content       generateContent `json:"content"`
	FinishReason  string          `json:"finishReason,omitempty"`
	SafetyRatings []safetyRating  `json:"safetyRatings,omitempty"`
}

type promptFeedback struct {
	BlockReason   string         `json:"blockReason,omitempty"`
	SafetyRatings []safetyRating `json:"safetyRatings,omitempty"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// EditImage sends the source image and instruction in a single
// generateContent call and classifies the response into an image or a
// failure. Inputs whose MIME type is not image/* fail before any network
// traffic.
func (c *Client) EditImage(ctx context.Context, req domain.TransformationRequest) (domain.EncodedImage, error) {
	if !req.Source.IsImage() {
		return domain.EncodedImage{}, domain.NewTransformError(domain.FailureInvalidInput,
			"source payload is not an image (mime type %q)", req.Source.MimeType)
	}

	body := generateRequest{
		Contents: []generateContent{
			{
				Parts: []generatePart{
					{InlineData: &inlineData{
						MimeType: req.Source.MimeType,
						Data:     req.Source.Data,
					}},
					{Text: req.Instruction},
				},
				Role: "user",
			},
		},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.EncodedImage{}, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.EncodedImage{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.EncodedImage{}, fmt.Errorf("image edit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.EncodedImage{}, c.decodeAPIError(resp)
	}

	var gResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return domain.EncodedImage{}, fmt.Errorf("failed to decode response: %w", err)
	}

	img, err := classify(&gResp)
	if err != nil {
		c.log.Warn("Image edit did not produce an image",
			zap.String("model", c.cfg.Model),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err))
		return domain.EncodedImage{}, fmt.Errorf("image edit failed: %w", err)
	}

	c.log.Info("Image edit succeeded",
		zap.String("model", c.cfg.Model),
		zap.String("mime_type", img.MimeType),
		zap.Int("payload_len", len(img.Data)))

	return img, nil
}

func (c *Client) decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("image edit failed: %w", domain.NewTransformError(domain.FailureUnknown,
			"service error (status %d): %s", resp.StatusCode, apiErr.Error.Message))
	}
	return fmt.Errorf("image edit failed: %w", domain.NewTransformError(domain.FailureUnknown,
		"service error (status %d): %s", resp.StatusCode, string(raw)))
}

// classify applies the response rules in strict order: missing candidates,
// abnormal finish reason, image part, text part, then empty result. First
// match wins.
func classify(resp *generateResponse) (domain.EncodedImage, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return domain.EncodedImage{}, domain.NewTransformError(domain.FailureBlocked,
				"request was blocked (reason: %s)", resp.PromptFeedback.BlockReason)
		}
		return domain.EncodedImage{}, domain.NewTransformError(domain.FailureEmptyResult,
			"no candidates returned")
	}

	cand := resp.Candidates[0]

	if fr := cand.FinishReason; fr != "" && fr != finishReasonStop {
		if fr == "SAFETY" || fr == "IMAGE_SAFETY" {
			if cat := blockedCategory(cand.SafetyRatings); cat != "" {
				return domain.EncodedImage{}, domain.NewTransformError(domain.FailureGenerationHalted,
					"generation stopped for safety reasons (category: %s)", cat)
			}
			return domain.EncodedImage{}, domain.NewTransformError(domain.FailureGenerationHalted,
				"generation stopped for safety reasons")
		}
		return domain.EncodedImage{}, domain.NewTransformError(domain.FailureGenerationHalted,
			"generation did not complete normally (reason: %s)", fr)
	}

	for _, part := range cand.Content.Parts {
		if part.InlineData != nil {
			return domain.EncodedImage{
				MimeType: part.InlineData.MimeType,
				Data:     part.InlineData.Data,
			}, nil
		}
	}

	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			return domain.EncodedImage{}, domain.NewTransformError(domain.FailureTextInsteadOfImage,
				"model returned text instead of an image: %s", part.Text)
		}
	}

	return domain.EncodedImage{}, domain.NewTransformError(domain.FailureEmptyResult,
		"request succeeded but no image was produced")
}

func blockedCategory(ratings []safetyRating) string {
	for _, r := range ratings {
		if r.Blocked {
			return r.Category
		}
	}
	if len(ratings) > 0 {
		return ratings[0].Category
	}
	return ""
}

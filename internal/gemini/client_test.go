package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ageshift/internal/config"
	"ageshift/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash-image-preview",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func sourceImage() domain.EncodedImage {
	return domain.EncodedImage{MimeType: "image/png", Data: "aGVsbG8="}
}

func TestEditImageRejectsNonImageInput(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.EditImage(context.Background(), domain.TransformationRequest{
		Source:      domain.EncodedImage{MimeType: "application/pdf", Data: "aGVsbG8="},
		Instruction: "make them older",
	})

	require.Error(t, err)
	assert.Equal(t, domain.FailureInvalidInput, domain.KindOf(err))
	assert.Contains(t, err.Error(), "application/pdf")
	assert.Equal(t, int64(0), calls.Load(), "no network call may happen for invalid input")
}

func TestEditImageSendsInlineDataAndInstruction(t *testing.T) {
	var got generateRequest
	var apiKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-goog-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeResponse(w, generateResponse{
			Candidates: []candidate{{
				FinishReason: "STOP",
				Content: generateContent{Parts: []generatePart{
					{InlineData: &inlineData{MimeType: "image/png", Data: "b3V0cHV0"}},
				}},
			}},
		})
	})

	img, err := client.EditImage(context.Background(), domain.TransformationRequest{
		Source:      sourceImage(),
		Instruction: "make them look 80 years old",
	})

	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, "b3V0cHV0", img.Data)

	assert.Equal(t, "test-key", apiKey)
	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 2)
	require.NotNil(t, got.Contents[0].Parts[0].InlineData)
	assert.Equal(t, "image/png", got.Contents[0].Parts[0].InlineData.MimeType)
	assert.Equal(t, "aGVsbG8=", got.Contents[0].Parts[0].InlineData.Data)
	assert.Equal(t, "make them look 80 years old", got.Contents[0].Parts[1].Text)
	require.NotNil(t, got.GenerationConfig)
	assert.ElementsMatch(t, []string{"TEXT", "IMAGE"}, got.GenerationConfig.ResponseModalities)
}

func TestEditImageClassification(t *testing.T) {
	tests := []struct {
		name     string
		resp     generateResponse
		wantKind domain.FailureKind
		wantMsg  string
	}{
		{
			name: "no candidates with block reason",
			resp: generateResponse{
				PromptFeedback: &promptFeedback{BlockReason: "SAFETY"},
			},
			wantKind: domain.FailureBlocked,
			wantMsg:  "SAFETY",
		},
		{
			name:     "no candidates without block reason",
			resp:     generateResponse{},
			wantKind: domain.FailureEmptyResult,
			wantMsg:  "no candidates",
		},
		{
			name: "safety halt with category",
			resp: generateResponse{
				Candidates: []candidate{{
					FinishReason: "SAFETY",
					SafetyRatings: []safetyRating{
						{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Probability: "HIGH", Blocked: true},
					},
				}},
			},
			wantKind: domain.FailureGenerationHalted,
			wantMsg:  "HARM_CATEGORY_DANGEROUS_CONTENT",
		},
		{
			name: "image safety halt without ratings",
			resp: generateResponse{
				Candidates: []candidate{{FinishReason: "IMAGE_SAFETY"}},
			},
			wantKind: domain.FailureGenerationHalted,
			wantMsg:  "safety",
		},
		{
			name: "abnormal finish reason",
			resp: generateResponse{
				Candidates: []candidate{{FinishReason: "MAX_TOKENS"}},
			},
			wantKind: domain.FailureGenerationHalted,
			wantMsg:  "MAX_TOKENS",
		},
		{
			name: "finish reason checked before text part",
			resp: generateResponse{
				Candidates: []candidate{{
					FinishReason: "RECITATION",
					Content: generateContent{Parts: []generatePart{
						{Text: "cannot do that"},
					}},
				}},
			},
			wantKind: domain.FailureGenerationHalted,
			wantMsg:  "RECITATION",
		},
		{
			name: "text instead of image",
			resp: generateResponse{
				Candidates: []candidate{{
					FinishReason: "STOP",
					Content: generateContent{Parts: []generatePart{
						{Text: "I can only describe this photo."},
					}},
				}},
			},
			wantKind: domain.FailureTextInsteadOfImage,
			wantMsg:  "I can only describe this photo.",
		},
		{
			name: "stop with no parts",
			resp: generateResponse{
				Candidates: []candidate{{FinishReason: "STOP"}},
			},
			wantKind: domain.FailureEmptyResult,
			wantMsg:  "no image was produced",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeResponse(w, tt.resp)
			})

			_, err := client.EditImage(context.Background(), domain.TransformationRequest{
				Source:      sourceImage(),
				Instruction: "make them younger",
			})

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, domain.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestEditImagePrefersImagePartOverText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, generateResponse{
			Candidates: []candidate{{
				FinishReason: "STOP",
				Content: generateContent{Parts: []generatePart{
					{Text: "here is your image"},
					{InlineData: &inlineData{MimeType: "image/jpeg", Data: "cGljdHVyZQ=="}},
				}},
			}},
		})
	})

	img, err := client.EditImage(context.Background(), domain.TransformationRequest{
		Source:      sourceImage(),
		Instruction: "make them older",
	})

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, "cGljdHVyZQ==", img.Data)
}

func TestEditImageAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := client.EditImage(context.Background(), domain.TransformationRequest{
		Source:      sourceImage(),
		Instruction: "make them older",
	})

	require.Error(t, err)
	assert.Equal(t, domain.FailureUnknown, domain.KindOf(err))
	assert.Contains(t, err.Error(), "Resource has been exhausted")
	assert.Contains(t, err.Error(), "429")
}

func writeResponse(w http.ResponseWriter, resp generateResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"trustline/backend/internal/logger"
)

// Classifier labels an image. Errors are non-fatal to callers.
type Classifier interface {
	Classify(ctx context.Context, image []byte, contentType string) (string, error)
}

// ErrClassifierDisabled is returned when no API key is configured.
var ErrClassifierDisabled = errors.New("image classifier not configured")

// Labels offered to the model. Civic labels come first, then cyber, then the fallback.
var promptLabels = []string{
	"Garbage", "Street Light", "Pothole", "Water Leakage", "Open Drain", "Illegal Construction",
	"Traffic Signal", "Public Transport", "Unsafe Building", "Tree Cutting", "Mosquito Breeding",
	"Pollution", "Corruption", "Health Facility", "School Issue",
	"Phishing", "Credit Card Fraud", "Malware", "Ransomware", "Identity Theft", "Online Scam",
	"Fake News", "Cyberbullying", "Hate Speech", "Data Breach", "Weak Password", "Server Downtime",
	"Poor Connectivity", "Fake Apps", FallbackLabel,
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiClassifier asks the Gemini generateContent API for a single label.
type GeminiClassifier struct {
	httpClient *resty.Client
	endpoint   string
	apiKey     string
}

// NewGeminiClassifier creates the client. endpoint is the full generateContent URL.
func NewGeminiClassifier(endpoint, apiKey string, timeout time.Duration) *GeminiClassifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &GeminiClassifier{
		httpClient: client,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Classify returns the model's label for the image, trimmed.
func (g *GeminiClassifier) Classify(ctx context.Context, image []byte, contentType string) (string, error) {
	if g.apiKey == "" {
		return "", ErrClassifierDisabled
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	prompt := "Classify this image or issue into exactly one category from the following list: [" +
		strings.Join(promptLabels, ", ") + "]. Return only the category name."

	request := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: contentType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}

	var response geminiResponse
	resp, err := g.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(request).
		SetResult(&response).
		Post(g.endpoint)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	if resp.IsError() {
		logger.Warn("Gemini API returned error",
			zap.Int("status_code", resp.StatusCode()),
		)
		return "", fmt.Errorf("gemini status %d", resp.StatusCode())
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	label := strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text)
	if label == "" {
		return "", errors.New("gemini returned an empty label")
	}

	logger.Debug("Image classified", zap.String("label", label))
	return label, nil
}

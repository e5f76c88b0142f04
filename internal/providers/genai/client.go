package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"mohaweel/internal/domain"
	"mohaweel/internal/infra"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-image"
	DefaultTimeout = 60 * time.Second
)

var errMissingAPIKey = errors.New("gemini api key is not configured")

var imageMIMEPattern = regexp.MustCompile(`^image/[a-z]+$`)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client sends one image plus an edit instruction to Gemini and returns the
// first image the model produces.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content,omitempty"`
	FinishReason string         `json:"finishReason,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; one bounded by opts.Timeout will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasAPIKey reports whether a credential was configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// Transform asks the model to edit img according to prompt. It makes exactly
// one request and every failure is returned as a *domain.Error.
func (c *Client) Transform(ctx context.Context, img domain.EncodedImage, prompt string) (domain.EncodedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if img.IsZero() {
		return domain.EncodedImage{}, domain.Validation(domain.CodeNoImage)
	}
	if prompt == "" {
		return domain.EncodedImage{}, domain.Validation(domain.CodeNoPrompt)
	}
	if c.apiKey == "" {
		return domain.EncodedImage{}, domain.Credential(errMissingAPIKey)
	}

	mimeType := detectMIME(img)
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				}},
			},
		}},
	}

	start := time.Now()
	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		derr := classifyTransportError(err)
		c.logger.Warn().
			Err(err).
			Str("model", c.model).
			Str("code", derr.Code).
			Dur("elapsed", time.Since(start)).
			Msg("genai: transform request failed")
		return domain.EncodedImage{}, derr
	}

	out, err := extractImage(response)
	if err != nil {
		derr := domain.AsError(err)
		c.logger.Info().
			Str("model", c.model).
			Str("code", derr.Code).
			Msg("genai: model returned no image")
		return domain.EncodedImage{}, derr
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("input_mime", mimeType).
		Int("output_bytes", len(out.Data)).
		Dur("elapsed", time.Since(start)).
		Msg("genai: transformed image")
	return out, nil
}

// extractImage applies the response rules to the first candidate: the first
// part with inline data wins, otherwise any text is surfaced as a refusal.
func extractImage(resp geminiGenerateContentResponse) (domain.EncodedImage, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return domain.EncodedImage{}, domain.Blocked(fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
		}
		return domain.EncodedImage{}, domain.Service(domain.CodeNoResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return domain.EncodedImage{}, domain.Service(domain.CodeEmptyResponse)
	}

	for _, part := range candidate.Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return domain.EncodedImage{}, domain.Malformed(fmt.Errorf("decode inline data: %w", err))
		}
		return domain.EncodedImage{MIMEType: domain.GeneratedMIMEType, Data: data}, nil
	}

	for _, part := range candidate.Content.Parts {
		if text := strings.TrimSpace(part.Text); text != "" {
			return domain.EncodedImage{}, domain.Refused(text)
		}
	}

	if isSafetyReason(candidate.FinishReason) {
		return domain.EncodedImage{}, domain.Blocked(fmt.Errorf("finish reason %s", candidate.FinishReason))
	}
	return domain.EncodedImage{}, domain.Service(domain.CodeNoImageFound)
}

func detectMIME(img domain.EncodedImage) string {
	declared := strings.ToLower(strings.TrimSpace(img.MIMEType))
	if imageMIMEPattern.MatchString(declared) {
		return declared
	}
	if sniffed := mimetype.Detect(img.Data); sniffed != nil && strings.HasPrefix(sniffed.String(), "image/") {
		return sniffed.String()
	}
	return domain.FallbackMIMEType
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &statusError{Status: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return &statusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

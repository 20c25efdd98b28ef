package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arthaus/photoshoot-bot/internal/config"
	"github.com/arthaus/photoshoot-bot/internal/metrics"
)

// Client talks to a Google-format generateContent endpoint. One call is one
// attempt; retrying is the caller's decision.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	authHeader  string
	aspectRatio string
	imageSize   string
	httpClient  *http.Client
	log         *slog.Logger
}

// GenerateRequest carries the prompt plus 1..N raw source images.
type GenerateRequest struct {
	Prompt string
	Images [][]byte
}

// Image is the decoded inline payload from the first usable candidate.
type Image struct {
	Bytes []byte
	Mime  string
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		// 4K renders routinely run for minutes.
		timeout = 6 * time.Minute
	}

	return &Client{
		apiKey:      cfg.ProviderAPIKey,
		baseURL:     strings.TrimRight(cfg.ProviderBaseURL, "/"),
		model:       cfg.ProviderModel,
		authHeader:  cfg.ProviderAuthHeader,
		aspectRatio: cfg.AspectRatio,
		imageSize:   cfg.ImageSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// BuildPrompt returns the text part of the request. A curated style prompt is
// used verbatim; otherwise a generic template around the style title asks the
// model to preserve facial identity and treat every photo as a reference for
// the same person.
func BuildPrompt(styleTitle, stylePrompt string) string {
	if stylePrompt != "" {
		return stylePrompt
	}
	return "Преврати это(эти) селфи в профессиональную фотосессию.\n" +
		fmt.Sprintf("Стиль: «%s».\n", styleTitle) +
		"Сохрани черты лица пользователя и идентичность на всех вариантах, " +
		"сделай свет, фон и обработку в указанном стиле, " +
		"без надписей и логотипов, качественное реалистичное изображение.\n" +
		"Если прислано несколько фото, используй их как референсы одного и того же человека, " +
		"чтобы улучшить сходство и детализацию."
}

// DetectMime sniffs the image format from file magic bytes. Unknown formats
// are reported as JPEG, which the provider accepts for camera output.
func DetectMime(data []byte) string {
	if bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return "image/png"
	}
	if bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}
	if bytes.HasPrefix(data, []byte("\xff\xd8\xff")) {
		return "image/jpeg"
	}
	return "image/jpeg"
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Image, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	parts := make([]any, 0, len(req.Images)+1)
	parts = append(parts, map[string]any{"text": req.Prompt})
	for _, img := range req.Images {
		parts = append(parts, map[string]any{
			"inline_data": map[string]any{
				"mime_type": DetectMime(img),
				"data":      base64.StdEncoding.EncodeToString(img),
			},
		})
	}

	payload := map[string]any{
		"contents": []any{
			map[string]any{
				"role":  "user",
				"parts": parts,
			},
		},
		"generationConfig": map[string]any{
			"responseModalities": []string{"IMAGE"},
			"imageConfig": map[string]any{
				"aspectRatio": c.aspectRatio,
				"imageSize":   c.imageSize,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, unavailable("marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, unavailable("build request", err)
	}
	if strings.EqualFold(c.authHeader, "Authorization") {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		httpReq.Header.Set(c.authHeader, c.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.log.Info("sending generation request", "model", c.model, "images", len(req.Images), "image_size", c.imageSize)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, unavailable("provider request", err)
	}
	defer resp.Body.Close()
	metrics.ProviderLatency.Observe(time.Since(started).Seconds())

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.classifyFailure(resp.StatusCode, rawBody)
	}

	return c.decodeImage(rawBody)
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) classifyFailure(status int, body []byte) *Error {
	var envelope struct {
		Error *apiError `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		message = envelope.Error.Message
	}

	c.log.Error("provider rejected request", "status", status, "message", message, "body", truncateBody(body))

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &Error{
			Kind:    KindAuthorization,
			Status:  status,
			Message: "provider rejected the request (key, quota or access)",
		}
	}
	if message != "" && (strings.Contains(message, "imageSize") || strings.Contains(message, c.imageSize)) {
		return &Error{
			Kind:    KindResolution,
			Status:  status,
			Message: fmt.Sprintf("provider rejected the %s size tier", c.imageSize),
		}
	}
	return &Error{
		Kind:    KindUnavailable,
		Status:  status,
		Message: fmt.Sprintf("provider unavailable: %s", truncateBody(body)),
	}
}

// rawInline tolerates both field spellings the provider has been observed to
// emit; normalization into a single shape happens here and nowhere else.
type rawInline struct {
	MimeTypeCamel string `json:"mimeType"`
	MimeTypeSnake string `json:"mime_type"`
	Data          string `json:"data"`
}

type rawPart struct {
	InlineCamel *rawInline `json:"inlineData"`
	InlineSnake *rawInline `json:"inline_data"`
}

func (p rawPart) inline() *rawInline {
	if p.InlineCamel != nil {
		return p.InlineCamel
	}
	return p.InlineSnake
}

func (in *rawInline) mime() string {
	if in.MimeTypeCamel != "" {
		return in.MimeTypeCamel
	}
	if in.MimeTypeSnake != "" {
		return in.MimeTypeSnake
	}
	return "image/jpeg"
}

func (c *Client) decodeImage(body []byte) (*Image, error) {
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []rawPart `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{
			Kind:    KindUnavailable,
			Message: fmt.Sprintf("decode response: %v (body=%s)", err, truncateBody(body)),
		}
	}

	if len(parsed.Candidates) == 0 {
		return nil, &Error{Kind: KindUnavailable, Message: "response contains no candidates"}
	}

	for _, part := range parsed.Candidates[0].Content.Parts {
		in := part.inline()
		if in == nil || in.Data == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return nil, &Error{Kind: KindUnavailable, Message: "decode inline image data", Err: err}
		}
		return &Image{Bytes: decoded, Mime: in.mime()}, nil
	}

	return nil, &Error{Kind: KindUnavailable, Message: "response contains no inline image payload"}
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}

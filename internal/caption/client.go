package caption

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	// FallbackUnable is returned when the service answered with a shape that carries no caption.
	FallbackUnable = "unable to generate caption"
	// FallbackError is returned when reading the image, calling the service or decoding its answer failed.
	FallbackError = "error generating caption"

	maxResponseBytes = 1 << 20
)

// StatusError reports a non-2xx answer of the inference endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("caption service returned status %d: %s", e.StatusCode, e.Body)
}

// Captioner produces a display caption for a stored image.
type Captioner interface {
	Caption(ctx context.Context, imagePath string) string
}

// Client talks to a hosted image-to-text model over HTTP.
// Every call issues exactly one request; nothing is retried or cached.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a caption client. A zero timeout leaves requests unbounded.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Caption returns the caption for the image at imagePath or one of the fallback strings.
// Failures are logged and never returned.
func (c *Client) Caption(ctx context.Context, imagePath string) string {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		slog.Error("failed to read image for captioning", "path", imagePath, "error", err)
		return FallbackError
	}

	response, err := c.Generate(ctx, data)
	if err != nil {
		slog.Error("failed to generate caption", "path", imagePath, "error", err)
		return FallbackError
	}

	text, ok := response.Caption()
	if !ok {
		slog.Warn("caption service answered without generated text", "path", imagePath, "shape", response.shape)
		return FallbackUnable
	}
	return text
}

// Generate posts the raw image bytes to the endpoint and decodes the answer.
func (c *Client) Generate(ctx context.Context, image []byte) (Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create caption request: %w", err)
	}
	request.Header.Set("Content-Type", "application/octet-stream")
	// sent even without a token, the service answers 401 then
	request.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return Response{}, fmt.Errorf("caption request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read caption response: %w", err)
	}
	slog.Debug("caption service response", "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	return DecodeResponse(body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

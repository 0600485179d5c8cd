package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxErrorBody = 64 << 10

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zerolog.Logger
}

// Client talks to the remote image API. It holds no credential; every call
// takes the token it should authenticate with.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.venice.ai/api/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "imagegen").Logger()
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		logger:     logger,
	}
}

// Generate requests req.Variants new images.
func (c *Client) Generate(ctx context.Context, token string, req GenerationRequest) (Batch, error) {
	var out generateResponse
	if err := c.do(ctx, "generate", http.MethodPost, "/image/generate", token, req, &out); err != nil {
		return Batch{}, err
	}
	if len(out.Images) == 0 {
		return Batch{}, &Error{Kind: KindUnknown, Message: "The API returned no image"}
	}
	return Batch{Images: out.Images, Format: req.Format}, nil
}

// Upscale returns a single-image batch holding the upscaled image.
func (c *Client) Upscale(ctx context.Context, token string, req UpscaleRequest) (Batch, error) {
	var out singleImageResponse
	if err := c.do(ctx, "upscale", http.MethodPost, "/image/upscale", token, req, &out); err != nil {
		return Batch{}, err
	}
	return single(out.Image, req.Format)
}

// Edit returns a single-image batch holding the edited image.
func (c *Client) Edit(ctx context.Context, token string, req EditRequest) (Batch, error) {
	var out singleImageResponse
	if err := c.do(ctx, "edit", http.MethodPost, "/image/edit", token, req, &out); err != nil {
		return Batch{}, err
	}
	return single(out.Image, req.Format)
}

// ModelTraits lists the trait object of every model id. A response wrapped
// in a top-level "data" object is unwrapped.
func (c *Client) ModelTraits(ctx context.Context, token string) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	if err := c.do(ctx, "traits", http.MethodGet, "/models/traits", token, nil, &out); err != nil {
		return nil, err
	}
	if inner, ok := out["data"]; ok {
		var unwrapped map[string]json.RawMessage
		if err := json.Unmarshal(inner, &unwrapped); err == nil {
			return unwrapped, nil
		}
	}
	return out, nil
}

func single(image string, format Format) (Batch, error) {
	if strings.TrimSpace(image) == "" {
		return Batch{}, &Error{Kind: KindUnknown, Message: "The API returned no image"}
	}
	return Batch{Images: []string{image}, Format: format}, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrUnauthenticated()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("imagegen: encode %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("imagegen: build %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Dur("took", time.Since(start)).Msg("image api unreachable")
		return unreachable(err)
	}
	defer resp.Body.Close()
	c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("image api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := classify(resp.StatusCode, raw)
		c.logger.Warn().Str("op", op).Int("status", resp.StatusCode).Str("kind", string(apiErr.Kind)).Msg(apiErr.Message)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &Error{Status: resp.StatusCode, Kind: KindUnknown, Message: "Unreadable response from the image API", Err: err}
	}
	return nil
}

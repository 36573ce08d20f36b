// Package hfinference is a small client for the Hugging Face hosted
// inference API. It posts {"inputs": ..., "parameters": ...} to
// {base}/models/{model} and decodes the task-specific JSON array the API
// returns. The marian translator and the coedit editor share it.
package hfinference

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
)

// DefaultBaseURL is the public hosted-inference endpoint.
const DefaultBaseURL = "https://api-inference.huggingface.co"

const defaultTimeout = 60 * time.Second

// ErrEmptyOutput is returned when the model answers with no candidates.
var ErrEmptyOutput = errors.New("hfinference: empty model output")

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Model      string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hfinference: %s: status %d: %s", e.Model, e.StatusCode, e.Message)
}

// Option is a functional option for Client.
type Option func(*Client)

// WithBaseURL overrides [DefaultBaseURL], e.g. for a self-hosted
// text-generation-inference gateway.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client calls hosted models. It is safe for concurrent use.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// New creates a Client. token may be empty for anonymous access to public
// models.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type request struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    requestOptions `json:"options"`
}

type requestOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Infer posts inputs to model and decodes the JSON response into out.
// Cold models are waited for rather than retried.
func (c *Client) Infer(ctx context.Context, model, inputs string, params map[string]any, out any) error {
	if model == "" {
		return errors.New("hfinference: model must not be empty")
	}
	data, err := json.Marshal(request{Inputs: inputs, Parameters: params, Options: requestOptions{WaitForModel: true}})
	if err != nil {
		return fmt.Errorf("hfinference: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+model, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("hfinference: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hfinference: POST %s: %w", model, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("hfinference: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Model: model, Message: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("hfinference: decode %s response: %w", model, err)
	}
	return nil
}

// Translate runs a translation model and returns the first translation_text.
func (c *Client) Translate(ctx context.Context, model, text string) (string, error) {
	var out []struct {
		TranslationText string `json:"translation_text"`
	}
	if err := c.Infer(ctx, model, text, nil, &out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", ErrEmptyOutput
	}
	return strings.TrimSpace(out[0].TranslationText), nil
}

// Generate runs a text2text model and returns the first generated_text.
func (c *Client) Generate(ctx context.Context, model, text string, params map[string]any) (string, error) {
	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := c.Infer(ctx, model, text, params, &out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", ErrEmptyOutput
	}
	return strings.TrimSpace(out[0].GeneratedText), nil
}

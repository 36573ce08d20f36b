package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/tiktalk/internal/correction"
)

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server: %d: %s", e.Status, e.Message)
}

type language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type chat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type message struct {
	Seq      int64           `json:"seq"`
	Role     string          `json:"role"`
	Content  json.RawMessage `json:"content"`
	AudioURL string          `json:"audio_url,omitempty"`
}

type turn struct {
	Transcript string            `json:"transcript,omitempty"`
	Record     correction.Record `json:"record"`
	Reply      string            `json:"reply"`
	Assistant  message           `json:"assistant"`
}

// client talks to the TikTalk HTTP API.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *client) Languages(ctx context.Context) ([]language, error) {
	var out []language
	err := c.do(ctx, http.MethodGet, "/api/languages", nil, "", &out)
	return out, err
}

func (c *client) Chats(ctx context.Context) ([]chat, error) {
	var out []chat
	err := c.do(ctx, http.MethodGet, "/api/chats", nil, "", &out)
	return out, err
}

func (c *client) CreateChat(ctx context.Context, name, systemPrompt string) (chat, error) {
	var out chat
	err := c.doJSON(ctx, http.MethodPost, "/api/chats", map[string]string{
		"name":          name,
		"system_prompt": systemPrompt,
	}, &out)
	return out, err
}

func (c *client) DeleteChat(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(id), nil, "", nil)
}

func (c *client) Messages(ctx context.Context, id string) ([]message, error) {
	var out []message
	err := c.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(id)+"/messages", nil, "", &out)
	return out, err
}

func (c *client) ClearMessages(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(id)+"/messages", nil, "", nil)
}

func (c *client) SayText(ctx context.Context, id, text, lang string) (turn, error) {
	var out turn
	err := c.doJSON(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(id)+"/text", map[string]string{
		"text":     text,
		"language": lang,
	}, &out)
	return out, err
}

// SayAudio uploads a WAV recording as a spoken turn.
func (c *client) SayAudio(ctx context.Context, id string, wav []byte, lang string) (turn, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return turn{}, err
		}
	}
	fw, err := mw.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return turn{}, err
	}
	if _, err := fw.Write(wav); err != nil {
		return turn{}, err
	}
	if err := mw.Close(); err != nil {
		return turn{}, err
	}

	var out turn
	err = c.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(id)+"/answer", &body, mw.FormDataContentType(), &out)
	return out, err
}

func (c *client) Correct(ctx context.Context, text, lang string) (correction.Record, error) {
	var out correction.Record
	err := c.doJSON(ctx, http.MethodPost, "/api/correct", map[string]string{
		"text":     text,
		"language": lang,
	}, &out)
	return out, err
}

func (c *client) Translate(ctx context.Context, text, from, to string) (string, error) {
	var out struct {
		Translation string `json:"translation"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/translate", map[string]string{
		"text": text,
		"from": from,
		"to":   to,
	}, &out)
	return out.Translation, err
}

// Audio downloads the WAV behind a message audio URL.
func (c *client) Audio(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, bytes.NewReader(payload), "application/json", out)
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	return &apiError{Status: resp.StatusCode, Message: body.Error}
}

// resolveChat accepts a chat id or name.
func (c *client) resolveChat(ctx context.Context, ref string) (chat, error) {
	chats, err := c.Chats(ctx)
	if err != nil {
		return chat{}, err
	}
	for _, ch := range chats {
		if ch.ID == ref || ch.Name == ref {
			return ch, nil
		}
	}
	return chat{}, errors.New("no chat named " + ref)
}

// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// live WebSocket API. A clip is streamed in chunks, the stream is closed with
// a CloseStream message, and every final result received before the server
// hangs up is joined into one transcript.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"

	// chunkBytes is 100ms of 16 kHz mono PCM.
	chunkBytes = 3200
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "nova-2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithEndpoint overrides the WebSocket endpoint. Used by tests and for
// self-hosted Deepgram deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram live API.
type Provider struct {
	apiKey   string
	model    string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, cfg stt.Config) (stt.Transcript, error) {
	prepared, lang, voiced, err := stt.Prepare(clip, cfg)
	if err != nil {
		return stt.Transcript{}, err
	}
	out := stt.Transcript{Language: lang.Code, Duration: prepared.Duration()}
	if !voiced {
		return out, nil
	}

	wsURL, err := p.buildURL(lang.Code, prepared.Format)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	var (
		segments   []result
		confidence float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for off := 0; off < len(prepared.PCM); off += chunkBytes {
			end := min(off+chunkBytes, len(prepared.PCM))
			if err := conn.Write(gctx, websocket.MessageBinary, prepared.PCM[off:end]); err != nil {
				return fmt.Errorf("deepgram: write audio: %w", err)
			}
		}
		if err := conn.Write(gctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
			return fmt.Errorf("deepgram: close stream: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for {
			_, msg, err := conn.Read(gctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					return nil
				}
				return fmt.Errorf("deepgram: read: %w", err)
			}
			res, kind := parseDeepgramResponse(msg)
			switch kind {
			case msgMetadata:
				// Sent once after CloseStream, after the last result.
				return nil
			case msgFinal:
				if res.Text != "" {
					segments = append(segments, res)
					confidence += res.conf
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		return stt.Transcript{}, err
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	for _, s := range segments {
		out.Segments = append(out.Segments, s.Segment)
	}
	out.Text = stt.JoinSegments(out.Segments)
	if len(segments) > 0 {
		out.Confidence = confidence / float64(len(segments))
	}
	return out, nil
}

// buildURL constructs the Deepgram live endpoint URL for raw 16-bit PCM.
func (p *Provider) buildURL(lang string, f audio.Format) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(f.SampleRate))
	q.Set("channels", strconv.Itoa(f.Channels))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for Results
// and Metadata events.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type msgKind int

const (
	msgIgnored msgKind = iota
	msgFinal
	msgMetadata
)

type result struct {
	stt.Segment
	conf float64
}

// parseDeepgramResponse classifies a raw Deepgram message and, for final
// results, extracts the best alternative.
func parseDeepgramResponse(data []byte) (result, msgKind) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, msgIgnored
	}
	switch resp.Type {
	case "Metadata":
		return result{}, msgMetadata
	case "Results":
	default:
		return result{}, msgIgnored
	}
	if !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
		return result{}, msgIgnored
	}
	alt := resp.Channel.Alternatives[0]
	start := time.Duration(resp.Start * float64(time.Second))
	return result{
		Segment: stt.Segment{
			Text:  alt.Transcript,
			Start: start,
			End:   start + time.Duration(resp.Duration*float64(time.Second)),
		},
		conf: alt.Confidence,
	}, msgFinal
}

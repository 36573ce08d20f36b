package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/provider/tts"
	"github.com/MrWong99/tiktalk/pkg/provider/tts/openai"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := openai.New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	var body atomic.Value
	wav := audio.EncodeWAV(audio.Clip{PCM: make([]byte, 480), Format: audio.Format{SampleRate: 24000, Channels: 1}})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		body.Store(req)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	}))
	defer srv.Close()

	p, err := openai.New("sk-test", openai.WithBaseURL(srv.URL), openai.WithModel("gpt-4o-mini-tts"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clip, err := p.Synthesize(context.Background(), " Où est la gare ? ", tts.Voice{ID: "nova", SpeedFactor: 1.25})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.SampleRate != 24000 || len(clip.PCM) != 480 {
		t.Errorf("clip = %v with %d bytes, want 24000Hz with 480 bytes", clip.Format, len(clip.PCM))
	}

	req, _ := body.Load().(map[string]any)
	if req["input"] != "Où est la gare ?" {
		t.Errorf("input = %v", req["input"])
	}
	if req["voice"] != "nova" {
		t.Errorf("voice = %v, want nova", req["voice"])
	}
	if req["model"] != "gpt-4o-mini-tts" {
		t.Errorf("model = %v", req["model"])
	}
	if req["response_format"] != "wav" {
		t.Errorf("response_format = %v, want wav", req["response_format"])
	}
	if req["speed"] != 1.25 {
		t.Errorf("speed = %v, want 1.25", req["speed"])
	}
}

func TestSynthesize_UpstreamError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := openai.New("sk-test", openai.WithBaseURL(srv.URL))
	if _, err := p.Synthesize(context.Background(), "Hi", tts.Voice{}); err == nil {
		t.Fatal("expected error, got nil")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server hit %d times, want exactly 1 (no retries)", n)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()
	p, _ := openai.New("sk-test")
	if _, err := p.Synthesize(context.Background(), "\n", tts.Voice{}); err != tts.ErrEmptyText {
		t.Fatalf("err = %v, want tts.ErrEmptyText", err)
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()
	p, _ := openai.New("sk-test")
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) == 0 || voices[0].ID != "alloy" {
		t.Errorf("voices = %+v, want alloy first", voices)
	}
}

package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/tiktalk/internal/chatstore"
	"github.com/MrWong99/tiktalk/internal/correction"
	"github.com/MrWong99/tiktalk/internal/tutor"
	"github.com/MrWong99/tiktalk/pkg/audio"
)

type languageJSON struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type chatJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// messageJSON carries the role-tagged content payload unchanged.
type messageJSON struct {
	Seq       int64           `json:"seq"`
	Role      chatstore.Role  `json:"role"`
	Content   json.RawMessage `json:"content"`
	AudioURL  string          `json:"audio_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type turnJSON struct {
	Transcript string            `json:"transcript,omitempty"`
	Record     correction.Record `json:"record"`
	Reply      string            `json:"reply"`
	User       messageJSON       `json:"user"`
	Assistant  messageJSON       `json:"assistant"`
}

type createChatRequest struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
}

type textRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type translateRequest struct {
	Text string `json:"text"`
	From string `json:"from"`
	To   string `json:"to"`
}

func toChatJSON(c chatstore.Chat) chatJSON {
	return chatJSON{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

func audioURL(chatID string, seq int64) string {
	return fmt.Sprintf("/api/chats/%s/messages/%d/audio", chatID, seq)
}

func toMessageJSON(m chatstore.Message) (messageJSON, error) {
	payload, err := chatstore.EncodeContent(m.Content)
	if err != nil {
		return messageJSON{}, err
	}
	out := messageJSON{
		Seq:       m.Seq,
		Role:      m.Content.Role(),
		Content:   payload,
		CreatedAt: m.CreatedAt,
	}
	if m.HasAudio {
		out.AudioURL = audioURL(m.ChatID, m.Seq)
	}
	return out, nil
}

func toTurnJSON(t tutor.Turn) (turnJSON, error) {
	user, err := toMessageJSON(t.User)
	if err != nil {
		return turnJSON{}, err
	}
	assistant, err := toMessageJSON(t.Assistant)
	if err != nil {
		return turnJSON{}, err
	}
	return turnJSON{
		Transcript: t.Transcript,
		Record:     t.Record,
		Reply:      t.Reply,
		User:       user,
		Assistant:  assistant,
	}, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) listLanguages(w http.ResponseWriter, _ *http.Request) {
	langs := s.tutor.Languages()
	out := make([]languageJSON, len(langs))
	for i, l := range langs {
		out[i] = languageJSON{Code: l.Code, Name: l.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.tutor.ListChats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]chatJSON, len(chats))
	for i, c := range chats {
		out[i] = toChatJSON(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	chat, err := s.tutor.CreateChat(r.Context(), req.Name, req.SystemPrompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChatJSON(chat))
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.tutor.DeleteChat(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.tutor.Messages(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		mj, err := toMessageJSON(m)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, mj)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteMessages(w http.ResponseWriter, r *http.Request) {
	if err := s.tutor.DeleteMessages(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) messageAudio(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid message sequence %q", errBadRequest, chi.URLParam(r, "seq")))
		return
	}
	wav, err := s.tutor.MessageAudio(r.Context(), chi.URLParam(r, "chatID"), seq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = w.Write(wav)
}

// answer accepts a multipart form with the recording in the "audio" field
// and an optional "language" field.
func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, r, fmt.Errorf("%w: parse form: %v", errBadRequest, err))
		return
	}
	f, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: audio field: %v", errBadRequest, err))
		return
	}
	defer f.Close()
	wav, err := io.ReadAll(f)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read audio: %v", errBadRequest, err))
		return
	}
	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		writeError(w, r, err)
		return
	}

	turn, err := s.tutor.Answer(r.Context(), chi.URLParam(r, "chatID"), clip, s.langOr(r.FormValue("language")))
	s.writeTurn(w, r, turn, err)
}

func (s *Server) answerText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	turn, err := s.tutor.AnswerText(r.Context(), chi.URLParam(r, "chatID"), req.Text, s.langOr(req.Language))
	s.writeTurn(w, r, turn, err)
}

func (s *Server) writeTurn(w http.ResponseWriter, r *http.Request, turn tutor.Turn, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := toTurnJSON(turn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) correct(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.tutor.Correct(r.Context(), req.Text, s.langOr(req.Language))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.tutor.Translate(r.Context(), req.Text, s.langOr(req.From), req.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"translation": out})
}

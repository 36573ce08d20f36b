package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/MrWong99/tiktalk/internal/chatstore"
	"github.com/MrWong99/tiktalk/internal/correction"
	"github.com/MrWong99/tiktalk/pkg/language"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// bubble is one rendered message in the conversation log.
type bubble struct {
	Role     chatstore.Role
	Text     string
	Record   *correction.Record
	AudioURL string
}

type pageData struct {
	Chats           []chatstore.Chat
	Selected        *chatstore.Chat
	Bubbles         []bubble
	Languages       []language.Language
	DefaultLanguage string
}

// bubbles renders the log the way the learner sees it: system messages are
// hidden and user messages show what was actually said.
func bubbles(msgs []chatstore.Message) []bubble {
	out := make([]bubble, 0, len(msgs))
	for _, m := range msgs {
		b := bubble{Role: m.Content.Role()}
		if m.HasAudio {
			b.AudioURL = audioURL(m.ChatID, m.Seq)
		}
		switch c := m.Content.(type) {
		case chatstore.SystemContent:
			continue
		case chatstore.UserContent:
			rec := c.Record
			b.Text = rec.Original
			b.Record = &rec
		case chatstore.AssistantContent:
			b.Text = c.Content
		}
		out = append(out, b)
	}
	return out
}

// page renders the chat UI. The chat shown is selected with ?chat=<id> and
// defaults to the oldest chat.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chats, err := s.tutor.ListChats(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data := pageData{
		Chats:           chats,
		Languages:       s.tutor.Languages(),
		DefaultLanguage: s.defaultLang.Code,
	}

	if id := r.URL.Query().Get("chat"); id != "" {
		chat, err := s.tutor.GetChat(ctx, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		data.Selected = &chat
	} else if len(chats) > 0 {
		data.Selected = &chats[0]
	}

	if data.Selected != nil {
		msgs, err := s.tutor.Messages(ctx, data.Selected.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		data.Bubbles = bubbles(msgs)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		slog.Error("render page", "err", err)
	}
}

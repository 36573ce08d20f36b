package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/language"
)

// languageFrame is the text frame a client sends to switch language. The
// server acknowledges it with the resolved language.
type languageFrame struct {
	Language string `json:"language"`
}

// chatSocket runs spoken turns over a WebSocket. Each binary frame is a WAV
// recording and is answered with one JSON turn or error frame. Frames are
// handled in order, one turn at a time.
func (s *Server) chatSocket(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if _, err := s.tutor.GetChat(r.Context(), chatID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Debug("websocket accept failed", "chat", chatID, "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.maxUpload)

	ctx := r.Context()
	if s.metrics != nil {
		s.metrics.ActiveConnections.Add(ctx, 1)
		defer s.metrics.ActiveConnections.Add(context.WithoutCancel(ctx), -1)
	}

	lang := s.defaultLang.Code
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					slog.Debug("websocket read failed", "chat", chatID, "err", err)
				}
			}
			return
		}

		var reply any
		switch typ {
		case websocket.MessageText:
			reply, lang = s.switchLanguage(data, lang)
		case websocket.MessageBinary:
			reply = s.spokenTurn(ctx, r, chatID, data, lang)
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			slog.Debug("websocket write failed", "chat", chatID, "err", err)
			return
		}
	}
}

func (s *Server) switchLanguage(data []byte, current string) (reply any, lang string) {
	var frame languageFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return wsError(fmt.Errorf("%w: language frame: %v", errBadRequest, err)), current
	}
	l, err := language.Parse(frame.Language)
	if err != nil {
		return wsError(err), current
	}
	return languageFrame{Language: l.Code}, l.Code
}

func (s *Server) spokenTurn(ctx context.Context, r *http.Request, chatID string, wav []byte, lang string) any {
	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		return wsError(err)
	}
	turn, err := s.tutor.Answer(ctx, chatID, clip, lang)
	if err != nil {
		if statusFor(err) >= http.StatusInternalServerError {
			slog.Error("websocket turn failed", "path", r.URL.Path, "err", err)
		}
		return wsError(err)
	}
	out, err := toTurnJSON(turn)
	if err != nil {
		return wsError(err)
	}
	return out
}

func wsError(err error) errorJSON {
	return errorJSON{Error: err.Error(), Status: statusFor(err)}
}

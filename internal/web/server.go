// Package web serves the TikTalk browser UI and its JSON, WebSocket and MCP
// endpoints.
//
// All routes are mounted on a chi router built by [Server.Handler]:
//
//	GET    /                                        chat page
//	GET    /api/languages                           supported languages
//	GET    /api/chats                               list chats
//	POST   /api/chats                               create a chat
//	DELETE /api/chats/{chatID}                      delete a chat and its messages
//	GET    /api/chats/{chatID}/messages             message log
//	DELETE /api/chats/{chatID}/messages             clear the message log
//	GET    /api/chats/{chatID}/messages/{seq}/audio stored recording (audio/wav)
//	POST   /api/chats/{chatID}/answer               spoken turn (multipart WAV)
//	POST   /api/chats/{chatID}/text                 typed turn
//	GET    /api/chats/{chatID}/ws                   spoken turns over a WebSocket
//	POST   /api/correct                             correct a sentence
//	POST   /api/translate                           translate text
//	*      /mcp                                     MCP tools, when enabled
package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrWong99/tiktalk/internal/chatstore"
	"github.com/MrWong99/tiktalk/internal/correction"
	"github.com/MrWong99/tiktalk/internal/observe"
	"github.com/MrWong99/tiktalk/internal/tutor"
	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/language"
)

// Tutor is the conversation service the handlers drive.
type Tutor interface {
	CreateChat(ctx context.Context, name, systemPrompt string) (chatstore.Chat, error)
	ListChats(ctx context.Context) ([]chatstore.Chat, error)
	GetChat(ctx context.Context, chatID string) (chatstore.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	Messages(ctx context.Context, chatID string) ([]chatstore.Message, error)
	DeleteMessages(ctx context.Context, chatID string) error
	MessageAudio(ctx context.Context, chatID string, seq int64) ([]byte, error)
	Languages() []language.Language
	Correct(ctx context.Context, text, lang string) (correction.Record, error)
	Translate(ctx context.Context, text, from, to string) (string, error)
	Answer(ctx context.Context, chatID string, clip audio.Clip, lang string) (tutor.Turn, error)
	AnswerText(ctx context.Context, chatID, text, lang string) (tutor.Turn, error)
}

var _ Tutor = (*tutor.Service)(nil)

// defaultMaxUpload caps recordings at roughly five minutes of 16 kHz mono
// audio, or one minute of 48 kHz stereo.
const defaultMaxUpload = 10 << 20

// Server holds the handlers' dependencies.
type Server struct {
	tutor       Tutor
	metrics     *observe.Metrics
	defaultLang language.Language
	mcp         http.Handler
	routes      []func(chi.Router)
	maxUpload   int64
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics records HTTP and WebSocket metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDefaultLanguage sets the language used when a request names none.
// Default: English.
func WithDefaultLanguage(l language.Language) Option {
	return func(s *Server) {
		if !l.IsZero() {
			s.defaultLang = l
		}
	}
}

// WithMCP mounts h at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithRoutes lets the caller mount extra routes, such as health checks and
// /metrics, on the same router.
func WithRoutes(fn func(chi.Router)) Option {
	return func(s *Server) { s.routes = append(s.routes, fn) }
}

// WithMaxUploadBytes limits the size of uploaded recordings and WebSocket
// frames. Default: 10 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New returns a Server backed by t.
func New(t Tutor, opts ...Option) *Server {
	s := &Server{
		tutor:       t,
		defaultLang: language.English,
		maxUpload:   defaultMaxUpload,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(observe.Middleware(s.metrics))
	}

	r.Get("/", s.page)

	r.Route("/api", func(r chi.Router) {
		r.Get("/languages", s.listLanguages)
		r.Post("/correct", s.correct)
		r.Post("/translate", s.translate)

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", s.listChats)
			r.Post("/", s.createChat)

			r.Route("/{chatID}", func(r chi.Router) {
				r.Delete("/", s.deleteChat)
				r.Get("/messages", s.listMessages)
				r.Delete("/messages", s.deleteMessages)
				r.Get("/messages/{seq}/audio", s.messageAudio)
				r.Post("/answer", s.answer)
				r.Post("/text", s.answerText)
				r.Get("/ws", s.chatSocket)
			})
		})
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
		r.Handle("/mcp/*", s.mcp)
	}
	for _, fn := range s.routes {
		fn(r)
	}
	return r
}

// langOr resolves the requested language, falling back to the default.
// Validation is left to the tutor so that errors carry one taxonomy.
func (s *Server) langOr(requested string) string {
	if requested == "" {
		return s.defaultLang.Code
	}
	return requested
}

// Package mcptools exposes the tutor's stateless operations as MCP tools so
// that external agents can correct and translate text.
//
// Three tools are exported via [Tools]:
//   - "correct_text"   runs the correction pipeline on a sentence.
//   - "translate_text" translates between two supported languages.
//   - "list_languages" lists the supported languages.
//
// [NewServer] registers the tools with an MCP server from the official Go SDK
// and [Handler] serves it over streamable HTTP.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/tiktalk/internal/correction"
	"github.com/MrWong99/tiktalk/internal/observe"
	"github.com/MrWong99/tiktalk/pkg/language"
)

// Tutor is the subset of the tutor service the tools call.
type Tutor interface {
	Correct(ctx context.Context, text, lang string) (correction.Record, error)
	Translate(ctx context.Context, text, from, to string) (string, error)
	Languages() []language.Language
}

// Tool is a tool definition together with its handler.
type Tool struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does.
	Description string

	// Parameters is the JSON Schema of the tool's arguments.
	Parameters map[string]any

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result. Implementations must be safe for concurrent use.
	Handler func(ctx context.Context, args string) (string, error)
}

type correctArgs struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type translateArgs struct {
	Text string `json:"text"`
	From string `json:"from"`
	To   string `json:"to"`
}

type languageResult struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// Tools returns the tool set backed by t.
func Tools(t Tutor) []Tool {
	return []Tool{
		{
			Name:        "correct_text",
			Description: "Corrects the grammar and coherence of a sentence written in a supported language and scores how close it already was. Returns original, grammar_corrected, coherence_corrected, rewritten and score (0-100).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":     stringProp("The sentence to correct."),
					"language": stringProp("Language code or name of the sentence, e.g. \"fr\" or \"French\"."),
				},
				"required": []string{"text", "language"},
			},
			Handler: func(ctx context.Context, args string) (string, error) {
				var a correctArgs
				if err := decodeArgs(args, &a); err != nil {
					return "", err
				}
				rec, err := t.Correct(ctx, a.Text, a.Language)
				if err != nil {
					return "", err
				}
				return encodeResult(rec)
			},
		},
		{
			Name:        "translate_text",
			Description: "Translates text between two supported languages. Translations between two non-English languages go through English.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": stringProp("The text to translate."),
					"from": stringProp("Source language code or name."),
					"to":   stringProp("Target language code or name."),
				},
				"required": []string{"text", "from", "to"},
			},
			Handler: func(ctx context.Context, args string) (string, error) {
				var a translateArgs
				if err := decodeArgs(args, &a); err != nil {
					return "", err
				}
				out, err := t.Translate(ctx, a.Text, a.From, a.To)
				if err != nil {
					return "", err
				}
				return encodeResult(map[string]string{"translation": out})
			},
		},
		{
			Name:        "list_languages",
			Description: "Lists the languages the tutor can hear, correct, translate and speak.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			Handler: func(context.Context, string) (string, error) {
				langs := t.Languages()
				out := make([]languageResult, len(langs))
				for i, l := range langs {
					out[i] = languageResult{Code: l.Code, Name: l.Name}
				}
				return encodeResult(out)
			},
		},
	}
}

func decodeArgs(args string, v any) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("mcptools: invalid arguments: %w", err)
	}
	return nil
}

func encodeResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("mcptools: encode result: %w", err)
	}
	return string(b), nil
}

// NewServer returns an MCP server with every tool in tools registered. Tool
// failures are reported as error results rather than protocol errors so the
// calling agent sees the message. m may be nil.
func NewServer(version string, tools []Tool, m *observe.Metrics) *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "tiktalk", Version: version}, nil)
	for _, tool := range tools {
		srv.AddTool(&mcpsdk.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		}, handle(tool, m))
	}
	return srv
}

func handle(tool Tool, m *observe.Metrics) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		start := time.Now()
		out, err := tool.Handler(ctx, string(req.Params.Arguments))
		if m != nil {
			attrs := metric.WithAttributes(observe.Attr("tool", tool.Name))
			m.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.RecordToolCall(ctx, tool.Name, observe.Status(err))
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			slog.Warn("mcp tool failed", "tool", tool.Name, "err", err)
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}},
		}, nil
	}
}

// Handler serves srv over the MCP streamable HTTP transport.
func Handler(srv *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return srv }, nil)
}

package chatstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/tiktalk/internal/correction"
	"github.com/MrWong99/tiktalk/pkg/objstore"
)

// mockRow implements pgx.Row.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows over a fixed table.
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error { return assign(dest, r.data[r.idx-1]) }

// assign copies row values into scan destinations.
func assign(dest []any, row []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case **string:
			*d, _ = v.(*string)
		case *[]byte:
			*d, _ = v.([]byte)
		case *int64:
			*d = v.(int64)
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// mockDB implements DB.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	var gotSQL string
	db := &mockDB{execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		gotSQL = sql
		return pgconn.CommandTag{}, nil
	}}
	if err := NewPostgresStore(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS chats", "ON DELETE CASCADE", "GENERATED ALWAYS AS IDENTITY"} {
		if !strings.Contains(gotSQL, want) {
			t.Errorf("schema missing %q", want)
		}
	}

	failing := &mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("boom")
	}}
	if err := NewPostgresStore(failing).Migrate(context.Background()); err == nil {
		t.Error("expected migrate error")
	}
}

func TestPostgresStore_CreateChat(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var gotArgs []any
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		gotArgs = args
		return &mockRow{scanFunc: func(dest ...any) error { return assign(dest, []any{now}) }}
	}}

	c, err := NewPostgresStore(db).CreateChat(context.Background(), " Trip Planning ")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if c.Name != "Trip Planning" || !c.CreatedAt.Equal(now) || c.ID == "" {
		t.Errorf("chat = %+v", c)
	}
	if len(gotArgs) != 2 || gotArgs[0] != c.ID || gotArgs[1] != "Trip Planning" {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestPostgresStore_CreateChatDuplicate(t *testing.T) {
	t.Parallel()

	db := &mockDB{queryRowFunc: func(context.Context, string, ...any) pgx.Row {
		return &mockRow{scanFunc: func(...any) error { return &pgconn.PgError{Code: "23505"} }}
	}}
	_, err := NewPostgresStore(db).CreateChat(context.Background(), "dup")
	if !errors.Is(err, ErrChatExists) {
		t.Errorf("error = %v, want ErrChatExists", err)
	}
}

func TestPostgresStore_GetChatNotFound(t *testing.T) {
	t.Parallel()
	_, err := NewPostgresStore(&mockDB{}).GetChat(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_ListChats(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rows := &mockRows{data: [][]any{{"1", "a", now}, {"2", "b", now}}}
	db := &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) { return rows, nil }}

	chats, err := NewPostgresStore(db).ListChats(context.Background())
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 2 || chats[0].Name != "a" || chats[1].ID != "2" {
		t.Errorf("chats = %+v", chats)
	}
	if !rows.closed {
		t.Error("rows not closed")
	}
}

func TestPostgresStore_DeleteChat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	objects := objstore.NewMem()
	_ = objects.Put(ctx, "chats/c1/a.wav", []byte("x"), "audio/wav")
	_ = objects.Put(ctx, "chats/c2/b.wav", []byte("y"), "audio/wav")

	db := &mockDB{execFunc: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
		if args[0] == "c1" {
			return pgconn.NewCommandTag("DELETE 1"), nil
		}
		return pgconn.NewCommandTag("DELETE 0"), nil
	}}
	s := NewPostgresStore(db, WithObjectStore(objects))

	if err := s.DeleteChat(ctx, "c1"); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if objects.Len() != 1 {
		t.Errorf("objects left = %d, want 1", objects.Len())
	}
	if err := s.DeleteChat(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteChat(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_AppendMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotArgs []any
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		gotArgs = args
		return &mockRow{scanFunc: func(dest ...any) error { return assign(dest, []any{int64(7), time.Now()}) }}
	}}

	content := UserContent{Record: correction.Record{Original: "hi", Rewritten: "Hi.", Score: 66, Language: "en"}}
	m, err := NewPostgresStore(db).AppendMessage(ctx, "c1", content, []byte("RIFF"))
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if m.Seq != 7 || !m.HasAudio || m.Content != content {
		t.Errorf("message = %+v", m)
	}
	if gotArgs[1] != "user" {
		t.Errorf("role arg = %v, want user", gotArgs[1])
	}
	if !strings.Contains(string(gotArgs[2].([]byte)), `"rewritten":"Hi."`) {
		t.Errorf("payload = %s", gotArgs[2])
	}
	if string(gotArgs[3].([]byte)) != "RIFF" {
		t.Errorf("inline audio = %v", gotArgs[3])
	}
}

func TestPostgresStore_AppendMessageOffloadsAudio(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var key *string
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		key = args[4].(*string)
		return &mockRow{scanFunc: func(dest ...any) error { return assign(dest, []any{int64(1), time.Now()}) }}
	}}
	objects := objstore.NewMem()

	if _, err := NewPostgresStore(db, WithObjectStore(objects)).AppendMessage(ctx, "c1", UserContent{}, []byte("RIFF")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if key == nil || !strings.HasPrefix(*key, "chats/c1/") {
		t.Fatalf("audio key = %v", key)
	}
	data, err := objects.Get(ctx, *key)
	if err != nil || string(data) != "RIFF" {
		t.Errorf("stored object = %q, %v", data, err)
	}
}

func TestPostgresStore_AppendMessageFailureRemovesAudio(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		scanErr error
		wantErr error
	}{
		{name: "deleted chat", scanErr: &pgconn.PgError{Code: "23503"}, wantErr: ErrNotFound},
		{name: "insert failure", scanErr: errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var key *string
			db := &mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
				key = args[4].(*string)
				return &mockRow{scanFunc: func(...any) error { return tt.scanErr }}
			}}
			objects := objstore.NewMem()
			if err := objects.Put(ctx, "chats/c1/earlier.wav", []byte("RIFF"), "audio/wav"); err != nil {
				t.Fatalf("Put: %v", err)
			}

			_, err := NewPostgresStore(db, WithObjectStore(objects)).AppendMessage(ctx, "c1", UserContent{}, []byte("RIFF"))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if key == nil {
				t.Fatal("audio was not offloaded before the insert")
			}
			if _, err := objects.Get(ctx, *key); !errors.Is(err, objstore.ErrNotFound) {
				t.Errorf("Get(%s) error = %v, want ErrNotFound", *key, err)
			}
			if _, err := objects.Get(ctx, "chats/c1/earlier.wav"); err != nil {
				t.Errorf("earlier audio of the chat was removed: %v", err)
			}
		})
	}
}

func TestPostgresStore_AppendMessageMissingChat(t *testing.T) {
	t.Parallel()

	db := &mockDB{queryRowFunc: func(context.Context, string, ...any) pgx.Row {
		return &mockRow{scanFunc: func(...any) error { return &pgconn.PgError{Code: "23503"} }}
	}}
	_, err := NewPostgresStore(db).AppendMessage(context.Background(), "missing", AssistantContent{Content: "x"}, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_ListMessages(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rows := &mockRows{data: [][]any{
		{int64(1), "system", []byte(`{"role":"system","content":"sys"}`), false, now},
		{int64(2), "user", []byte(`{"role":"user","original":"hi","rewritten":"Hi.","score":66,"language":"en"}`), true, now},
		{int64(3), "assistant", []byte(`{"role":"assistant","content":"hello"}`), false, now},
	}}
	db := &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) { return rows, nil }}

	msgs, err := NewPostgresStore(db).ListMessages(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[0].Content != (SystemContent{Content: "sys"}) {
		t.Errorf("msgs[0] = %#v", msgs[0].Content)
	}
	user, ok := msgs[1].Content.(UserContent)
	if !ok || user.Rewritten != "Hi." || user.Score != 66 || !msgs[1].HasAudio {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[2].Role() != RoleAssistant {
		t.Errorf("msgs[2] role = %s", msgs[2].Role())
	}
}

func TestPostgresStore_ListMessagesEmpty(t *testing.T) {
	t.Parallel()
	msgs, err := NewPostgresStore(&mockDB{}).ListMessages(context.Background(), "gone")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Errorf("msgs = %#v, want empty non-nil", msgs)
	}
}

func TestPostgresStore_MessageAudio(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	objects := objstore.NewMem()
	_ = objects.Put(ctx, "chats/c1/k.wav", []byte("obj"), "audio/wav")
	key := "chats/c1/k.wav"

	tests := []struct {
		name    string
		row     []any
		want    string
		wantErr error
	}{
		{"inline", []any{[]byte("inline"), (*string)(nil)}, "inline", nil},
		{"object", []any{[]byte(nil), &key}, "obj", nil},
		{"none", []any{[]byte(nil), (*string)(nil)}, "", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := &mockDB{queryRowFunc: func(context.Context, string, ...any) pgx.Row {
				return &mockRow{scanFunc: func(dest ...any) error { return assign(dest, tt.row) }}
			}}
			got, err := NewPostgresStore(db, WithObjectStore(objects)).MessageAudio(ctx, "c1", 1)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("MessageAudio: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("audio = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	t.Parallel()

	db := &mockDB{queryRowFunc: func(context.Context, string, ...any) pgx.Row {
		return &mockRow{scanFunc: func(dest ...any) error { return assign(dest, []any{1}) }}
	}}
	if err := NewPostgresStore(db).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := NewPostgresStore(&mockDB{}).Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
}

package chatstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/tiktalk/pkg/objstore"
)

// Schema is the SQL DDL for the chats and messages tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS chats (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
    seq        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
    role       TEXT NOT NULL CHECK (role IN ('system', 'user', 'assistant')),
    content    JSONB NOT NULL,
    audio      BYTEA,
    audio_key  TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_seq ON messages(chat_id, seq);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresOption configures a [PostgresStore].
type PostgresOption func(*PostgresStore)

// WithObjectStore stores message audio in objects instead of the audio
// column. Only the object key is kept in PostgreSQL.
func WithObjectStore(objects objstore.Store) PostgresOption {
	return func(s *PostgresStore) { s.objects = objects }
}

// PostgresStore is a [Store] backed by PostgreSQL. Message payloads are
// JSONB; ordering comes from an identity column.
type PostgresStore struct {
	db      DB
	objects objstore.Store
	pinger  func(context.Context) error
	closer  func()
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on an existing connection or pool. The
// caller owns db and must run [PostgresStore.Migrate] before use.
func NewPostgresStore(db DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OpenPostgres connects a pool to dsn, verifies connectivity, and applies
// the schema. The returned store closes the pool on Close.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("chatstore: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("chatstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("chatstore: ping: %w", err)
	}
	s := NewPostgresStore(pool, opts...)
	s.pinger = pool.Ping
	s.closer = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("chatstore: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateChat(ctx context.Context, name string) (Chat, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Chat{}, err
	}
	c := Chat{ID: uuid.NewString(), Name: name}
	const query = `INSERT INTO chats (id, name) VALUES ($1, $2) RETURNING created_at`
	if err := s.db.QueryRow(ctx, query, c.ID, c.Name).Scan(&c.CreatedAt); err != nil {
		if pgCode(err) == codeUniqueViolation {
			return Chat{}, fmt.Errorf("%w: %q", ErrChatExists, name)
		}
		return Chat{}, fmt.Errorf("chatstore: create chat: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListChats(ctx context.Context) ([]Chat, error) {
	const query = `SELECT id, name, created_at FROM chats ORDER BY created_at, id`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chatstore: list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatstore: scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatstore: list chats: %w", err)
	}
	return chats, nil
}

func (s *PostgresStore) GetChat(ctx context.Context, id string) (Chat, error) {
	const query = `SELECT id, name, created_at FROM chats WHERE id = $1`
	var c Chat
	if err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Chat{}, fmt.Errorf("%w: chat %q", ErrNotFound, id)
		}
		return Chat{}, fmt.Errorf("chatstore: get chat %q: %w", id, err)
	}
	return c, nil
}

// DeleteChat removes the chat row; messages follow via ON DELETE CASCADE.
func (s *PostgresStore) DeleteChat(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("chatstore: delete chat %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: chat %q", ErrNotFound, id)
	}
	return s.dropAudio(ctx, id)
}

func (s *PostgresStore) AppendMessage(ctx context.Context, chatID string, content Content, audio []byte) (Message, error) {
	payload, err := EncodeContent(content)
	if err != nil {
		return Message{}, err
	}

	var (
		inline []byte
		key    *string
	)
	if len(audio) > 0 {
		if s.objects != nil {
			k := audioPrefix(chatID) + uuid.NewString() + ".wav"
			if err := s.objects.Put(ctx, k, audio, "audio/wav"); err != nil {
				return Message{}, fmt.Errorf("chatstore: store audio: %w", err)
			}
			key = &k
		} else {
			inline = audio
		}
	}

	const query = `
		INSERT INTO messages (chat_id, role, content, audio, audio_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at`

	m := Message{ChatID: chatID, Content: content, HasAudio: len(audio) > 0}
	err = s.db.QueryRow(ctx, query, chatID, string(content.Role()), payload, inline, key).Scan(&m.Seq, &m.CreatedAt)
	if err != nil {
		if key != nil {
			// Keys are unique, so the prefix matches only this object.
			if derr := s.objects.DeletePrefix(context.WithoutCancel(ctx), *key); derr != nil {
				slog.Warn("chatstore: failed to remove orphaned audio", "key", *key, "err", derr)
			}
		}
		if pgCode(err) == codeForeignKeyViolation {
			return Message{}, fmt.Errorf("%w: chat %q", ErrNotFound, chatID)
		}
		return Message{}, fmt.Errorf("chatstore: append message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	const query = `
		SELECT seq, role, content, (audio IS NOT NULL OR audio_key IS NOT NULL), created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY seq`

	rows, err := s.db.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("chatstore: list messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var (
			m       = Message{ChatID: chatID}
			role    string
			payload []byte
		)
		if err := rows.Scan(&m.Seq, &role, &payload, &m.HasAudio, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatstore: scan message: %w", err)
		}
		if m.Content, err = DecodeContent(Role(role), payload); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatstore: list messages: %w", err)
	}
	return msgs, nil
}

func (s *PostgresStore) DeleteMessages(ctx context.Context, chatID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("chatstore: delete messages: %w", err)
	}
	return s.dropAudio(ctx, chatID)
}

func (s *PostgresStore) MessageAudio(ctx context.Context, chatID string, seq int64) ([]byte, error) {
	const query = `SELECT audio, audio_key FROM messages WHERE chat_id = $1 AND seq = $2`
	var (
		inline []byte
		key    *string
	)
	if err := s.db.QueryRow(ctx, query, chatID, seq).Scan(&inline, &key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: message %d", ErrNotFound, seq)
		}
		return nil, fmt.Errorf("chatstore: get audio: %w", err)
	}
	switch {
	case key != nil && s.objects != nil:
		data, err := s.objects.Get(ctx, *key)
		if errors.Is(err, objstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: audio object %q", ErrNotFound, *key)
		}
		if err != nil {
			return nil, fmt.Errorf("chatstore: get audio: %w", err)
		}
		return data, nil
	case len(inline) > 0:
		return inline, nil
	default:
		return nil, fmt.Errorf("%w: audio for message %d", ErrNotFound, seq)
	}
}

// Ping checks database connectivity with a trivial query unless the store
// owns a pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pinger != nil {
		return s.pinger(ctx)
	}
	var one int
	return s.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

// Close closes the pool when the store was created by [OpenPostgres].
func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

func (s *PostgresStore) dropAudio(ctx context.Context, chatID string) error {
	if s.objects == nil {
		return nil
	}
	if err := s.objects.DeletePrefix(ctx, audioPrefix(chatID)); err != nil {
		return fmt.Errorf("chatstore: delete audio: %w", err)
	}
	return nil
}

func audioPrefix(chatID string) string { return "chats/" + chatID + "/" }

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// pgCode returns the SQLSTATE of a PostgreSQL error, or "".
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chattykathys/chattykathy/domain"
)

// SqliteStore implements the user and chat repositories on SQLite.
type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (or creates) the database at path and initializes
// the schema.
func NewSqliteStore(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SqliteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SqliteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS characters (
		id            TEXT PRIMARY KEY,
		slug          TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		bio           TEXT NOT NULL DEFAULT '',
		system_prompt TEXT NOT NULL,
		accent_color  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS conversations (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id),
		character_id TEXT NOT NULL REFERENCES characters(id),
		created_at   TIMESTAMP NOT NULL,
		UNIQUE(user_id, character_id)
	);
	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		provider        TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages(conversation_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// --- users ---

func (s *SqliteStore) CreateUser(ctx context.Context, email, passwordHash string) (domain.User, error) {
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("inserting user: %w", err)
	}
	return user, nil
}

func (s *SqliteStore) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *SqliteStore) UserByID(ctx context.Context, id string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scanning user: %w", err)
	}
	return user, nil
}

// --- characters ---

// UpsertCharacter inserts the character or refreshes its content by
// slug. An existing character keeps its id so conversations stay
// attached across reseeds.
func (s *SqliteStore) UpsertCharacter(ctx context.Context, character domain.Character) error {
	id := character.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO characters (id, slug, name, bio, system_prompt, accent_color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name          = excluded.name,
			bio           = excluded.bio,
			system_prompt = excluded.system_prompt,
			accent_color  = excluded.accent_color`,
		id, character.Slug, character.Name, character.Bio, character.SystemPrompt,
		character.AccentColor, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting character %q: %w", character.Slug, err)
	}
	return nil
}

func (s *SqliteStore) Characters(ctx context.Context) ([]domain.Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, name, bio, system_prompt, accent_color FROM characters ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	var characters []domain.Character
	for rows.Next() {
		var c domain.Character
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Bio, &c.SystemPrompt, &c.AccentColor); err != nil {
			return nil, fmt.Errorf("scanning character: %w", err)
		}
		characters = append(characters, c)
	}
	return characters, rows.Err()
}

func (s *SqliteStore) CharacterBySlug(ctx context.Context, slug string) (domain.Character, error) {
	var c domain.Character
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, bio, system_prompt, accent_color FROM characters WHERE slug = ?`, slug).
		Scan(&c.ID, &c.Slug, &c.Name, &c.Bio, &c.SystemPrompt, &c.AccentColor)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Character{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Character{}, fmt.Errorf("scanning character: %w", err)
	}
	return c, nil
}

// --- conversations ---

func (s *SqliteStore) ConversationByID(ctx context.Context, id string) (domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, character_id, created_at FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func (s *SqliteStore) ConversationFor(ctx context.Context, userID, characterID string) (domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, character_id, created_at FROM conversations
		 WHERE user_id = ? AND character_id = ?`, userID, characterID)
	return scanConversation(row)
}

// FindOrCreateConversation returns the unique conversation for the
// (user, character) pair, creating it if needed. The UNIQUE constraint
// makes the insert a no-op when the pair already exists, so concurrent
// callers converge on the same row.
func (s *SqliteStore) FindOrCreateConversation(ctx context.Context, userID, characterID string) (domain.Conversation, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, character_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, character_id) DO NOTHING`,
		uuid.NewString(), userID, characterID, time.Now().UTC(),
	)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("creating conversation: %w", err)
	}
	return s.ConversationFor(ctx, userID, characterID)
}

func scanConversation(row *sql.Row) (domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.CharacterID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("scanning conversation: %w", err)
	}
	return c, nil
}

// --- messages ---

func (s *SqliteStore) AppendMessage(ctx context.Context, conversationID string, role domain.Role, content, provider string) (domain.Message, error) {
	message := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Provider:       provider,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		message.ID, message.ConversationID, string(message.Role), message.Content,
		message.Provider, message.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("inserting message: %w", err)
	}
	return message, nil
}

// ListMessages returns the full transcript in creation order. The rowid
// tiebreak keeps messages written within the same clock tick stable.
func (s *SqliteStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, provider, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.Provider, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = domain.Role(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

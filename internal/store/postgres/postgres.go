package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies
// connectivity. Schema setup is handled by deployment migrations.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New constructs a postgres-backed store from an open database handle.
func New(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users           { return &users{db: s.db} }
func (s *pgStore) Characters() store.Characters { return &characters{db: s.db} }
func (s *pgStore) Threads() store.Threads       { return &threads{db: s.db} }
func (s *pgStore) Messages() store.Messages     { return &messages{db: s.db} }
func (s *pgStore) Events() store.Events         { return &events{db: s.db} }
func (s *pgStore) Posts() store.Posts           { return &posts{db: s.db} }

// HealthPing checks database connectivity.
func (s *pgStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	id := m.UserID
	if id == "" {
		id = uuid.New().String()
	}
	var created time.Time
	err := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, username, creation_time)
        VALUES ($1,$2,now())
        RETURNING creation_time
    `, id, m.Username).Scan(&created)
	if err != nil {
		return nil, err
	}
	return &model.User{UserID: id, Username: m.Username, CreationTime: created}, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	err := u.db.QueryRowContext(ctx, `
        SELECT user_id, username, creation_time FROM users WHERE user_id=$1
    `, userID).Scan(&out.UserID, &out.Username, &out.CreationTime)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (u *users) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var out model.User
	err := u.db.QueryRowContext(ctx, `
        SELECT user_id, username, creation_time FROM users WHERE username=$1
    `, username).Scan(&out.UserID, &out.Username, &out.CreationTime)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// --- Characters ---

type characters struct{ db *sql.DB }

const characterCols = `character_id, name, path, personality, appearance, scenario, img_gen, image_model, creation_time`

func scanCharacter(row interface{ Scan(...any) error }) (*model.Character, error) {
	var out model.Character
	if err := row.Scan(&out.CharacterID, &out.Name, &out.Path, &out.Personality, &out.Appearance, &out.Scenario, &out.ImgGen, &out.ImageModel, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *characters) Create(ctx context.Context, m *model.Character) (*model.Character, error) {
	id := m.CharacterID
	if id == "" {
		id = uuid.New().String()
	}
	var created time.Time
	err := c.db.QueryRowContext(ctx, `
        INSERT INTO characters (character_id, name, path, personality, appearance, scenario, img_gen, image_model, creation_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
        RETURNING creation_time
    `, id, m.Name, m.Path, m.Personality, m.Appearance, m.Scenario, m.ImgGen, m.ImageModel).Scan(&created)
	if err != nil {
		return nil, err
	}
	out := *m
	out.CharacterID = id
	out.CreationTime = created
	return &out, nil
}

func (c *characters) Get(ctx context.Context, characterID string) (*model.Character, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+characterCols+` FROM characters WHERE character_id=$1`, characterID)
	out, err := scanCharacter(row)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

func (c *characters) GetByPath(ctx context.Context, path string) (*model.Character, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+characterCols+` FROM characters WHERE path=$1`, path)
	out, err := scanCharacter(row)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

func (c *characters) List(ctx context.Context) ([]*model.Character, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+characterCols+` FROM characters ORDER BY creation_time ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Character
	for rows.Next() {
		ch, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (c *characters) Delete(ctx context.Context, characterID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM characters WHERE character_id=$1`, characterID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Threads ---

type threads struct{ db *sql.DB }

func (t *threads) Create(ctx context.Context, m *model.Thread) (*model.Thread, error) {
	id := m.ThreadID
	if id == "" {
		id = uuid.New().String()
	}
	var created time.Time
	err := t.db.QueryRowContext(ctx, `
        INSERT INTO threads (thread_id, user_id, character_id, creation_time)
        VALUES ($1,$2,$3,now())
        RETURNING creation_time
    `, id, m.UserID, m.CharacterID).Scan(&created)
	if err != nil {
		return nil, err
	}
	return &model.Thread{ThreadID: id, UserID: m.UserID, CharacterID: m.CharacterID, CreationTime: created}, nil
}

func (t *threads) Get(ctx context.Context, threadID string) (*model.Thread, error) {
	var out model.Thread
	err := t.db.QueryRowContext(ctx, `
        SELECT thread_id, user_id, character_id, creation_time FROM threads WHERE thread_id=$1
    `, threadID).Scan(&out.ThreadID, &out.UserID, &out.CharacterID, &out.CreationTime)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (t *threads) GetByUserCharacter(ctx context.Context, userID, characterID string) (*model.Thread, error) {
	var out model.Thread
	err := t.db.QueryRowContext(ctx, `
        SELECT thread_id, user_id, character_id, creation_time
        FROM threads WHERE user_id=$1 AND character_id=$2
        ORDER BY creation_time ASC LIMIT 1
    `, userID, characterID).Scan(&out.ThreadID, &out.UserID, &out.CharacterID, &out.CreationTime)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (t *threads) ListByUser(ctx context.Context, userID string) ([]*model.Thread, error) {
	rows, err := t.db.QueryContext(ctx, `
        SELECT thread_id, user_id, character_id, creation_time
        FROM threads WHERE user_id=$1 ORDER BY creation_time ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Thread
	for rows.Next() {
		var th model.Thread
		if err := rows.Scan(&th.ThreadID, &th.UserID, &th.CharacterID, &th.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &th)
	}
	return out, rows.Err()
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (m *messages) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	id := msg.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	var ts time.Time
	err := m.db.QueryRowContext(ctx, `
        INSERT INTO messages (message_id, thread_id, role, content, ts)
        VALUES ($1,$2,$3,$4,now())
        RETURNING ts
    `, id, msg.ThreadID, msg.Role, msg.Content).Scan(&ts)
	if err != nil {
		return nil, err
	}
	out := *msg
	out.MessageID = id
	out.Timestamp = ts
	return &out, nil
}

func (m *messages) CreateScheduled(ctx context.Context, msg *model.Message, delay time.Duration) (*model.Message, error) {
	id := msg.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	var ts time.Time
	err := m.db.QueryRowContext(ctx, `
        INSERT INTO messages (message_id, thread_id, role, content, ts)
        VALUES ($1,$2,$3,$4, now() + make_interval(secs => $5))
        RETURNING ts
    `, id, msg.ThreadID, msg.Role, msg.Content, delay.Seconds()).Scan(&ts)
	if err != nil {
		return nil, err
	}
	out := *msg
	out.MessageID = id
	out.Timestamp = ts
	return &out, nil
}

func (m *messages) Get(ctx context.Context, messageID string) (*model.Message, error) {
	var out model.Message
	err := m.db.QueryRowContext(ctx, `
        SELECT message_id, thread_id, role, content, ts FROM messages WHERE message_id=$1
    `, messageID).Scan(&out.MessageID, &out.ThreadID, &out.Role, &out.Content, &out.Timestamp)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (m *messages) list(ctx context.Context, query string, args ...any) ([]*model.Message, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.MessageID, &msg.ThreadID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func (m *messages) ListByThread(ctx context.Context, threadID string) ([]*model.Message, error) {
	return m.list(ctx, `
        SELECT message_id, thread_id, role, content, ts
        FROM messages WHERE thread_id=$1 ORDER BY ts ASC
    `, threadID)
}

func (m *messages) ListByCharacter(ctx context.Context, characterID string) ([]*model.Message, error) {
	return m.list(ctx, `
        SELECT m.message_id, m.thread_id, m.role, m.content, m.ts
        FROM messages m JOIN threads t ON t.thread_id = m.thread_id
        WHERE t.character_id=$1 ORDER BY m.ts ASC
    `, characterID)
}

func (m *messages) ListScheduled(ctx context.Context, threadID string) ([]*model.Message, error) {
	return m.list(ctx, `
        SELECT message_id, thread_id, role, content, ts
        FROM messages WHERE thread_id=$1 AND ts > now() ORDER BY ts ASC
    `, threadID)
}

func (m *messages) DeleteScheduled(ctx context.Context, threadID string) (int64, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM messages WHERE thread_id=$1 AND ts > now()`, threadID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *messages) Promote(ctx context.Context, messageID string) (*model.Message, error) {
	res, err := m.db.ExecContext(ctx, `UPDATE messages SET ts = now() WHERE message_id=$1`, messageID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return m.Get(ctx, messageID)
}

func (m *messages) DeleteFrom(ctx context.Context, threadID, messageID string) (int64, error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var ts time.Time
	err = tx.QueryRowContext(ctx, `SELECT ts FROM messages WHERE thread_id=$1 AND message_id=$2`, threadID, messageID).Scan(&ts)
	if err != nil {
		return 0, notFound(err)
	}
	res, err := tx.ExecContext(ctx, `
        DELETE FROM messages WHERE thread_id=$1 AND (ts > $2 OR message_id=$3)`, threadID, ts, messageID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// --- Events ---

type events struct{ db *sql.DB }

func (e *events) Create(ctx context.Context, m *model.Event) (*model.Event, error) {
	id := m.EventID
	if id == "" {
		id = uuid.New().String()
	}
	var ts time.Time
	err := e.db.QueryRowContext(ctx, `
        INSERT INTO events (event_id, character_id, kind, content, ts)
        VALUES ($1,$2,$3,$4,now())
        RETURNING ts
    `, id, m.CharacterID, m.Kind, m.Content).Scan(&ts)
	if err != nil {
		return nil, err
	}
	out := *m
	out.EventID = id
	out.Timestamp = ts
	return &out, nil
}

func (e *events) ListByCharacter(ctx context.Context, characterID string) ([]*model.Event, error) {
	rows, err := e.db.QueryContext(ctx, `
        SELECT event_id, character_id, kind, content, ts
        FROM events WHERE character_id=$1 ORDER BY ts ASC
    `, characterID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Event
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.EventID, &ev.CharacterID, &ev.Kind, &ev.Content, &ev.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (e *events) Delete(ctx context.Context, eventID string) error {
	res, err := e.db.ExecContext(ctx, `DELETE FROM events WHERE event_id=$1`, eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Posts ---

type posts struct{ db *sql.DB }

func (p *posts) Create(ctx context.Context, m *model.Post) (*model.Post, error) {
	id := m.PostID
	if id == "" {
		id = uuid.New().String()
	}
	var ts time.Time
	err := p.db.QueryRowContext(ctx, `
        INSERT INTO posts (post_id, character_id, description, image_post, prompt, caption, ts)
        VALUES ($1,$2,$3,$4,$5,$6,now())
        RETURNING ts
    `, id, m.CharacterID, m.Description, m.ImagePost, m.Prompt, m.Caption).Scan(&ts)
	if err != nil {
		return nil, err
	}
	out := *m
	out.PostID = id
	out.Timestamp = ts
	return &out, nil
}

func (p *posts) Get(ctx context.Context, postID string) (*model.Post, error) {
	var out model.Post
	var imagePath sql.NullString
	err := p.db.QueryRowContext(ctx, `
        SELECT post_id, character_id, description, image_post, prompt, caption, image_path, ts
        FROM posts WHERE post_id=$1
    `, postID).Scan(&out.PostID, &out.CharacterID, &out.Description, &out.ImagePost, &out.Prompt, &out.Caption, &imagePath, &out.Timestamp)
	if err != nil {
		return nil, notFound(err)
	}
	if imagePath.Valid {
		out.ImagePath = &imagePath.String
	}
	return &out, nil
}

func (p *posts) ListByCharacter(ctx context.Context, characterID string) ([]*model.Post, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT post_id, character_id, description, image_post, prompt, caption, image_path, ts
        FROM posts WHERE character_id=$1 ORDER BY ts ASC
    `, characterID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Post
	for rows.Next() {
		var po model.Post
		var imagePath sql.NullString
		if err := rows.Scan(&po.PostID, &po.CharacterID, &po.Description, &po.ImagePost, &po.Prompt, &po.Caption, &imagePath, &po.Timestamp); err != nil {
			return nil, err
		}
		if imagePath.Valid {
			po.ImagePath = &imagePath.String
		}
		out = append(out, &po)
	}
	return out, rows.Err()
}

func (p *posts) SetImagePath(ctx context.Context, postID, imagePath string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE posts SET image_path=$1 WHERE post_id=$2`, imagePath, postID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (p *posts) ClearImage(ctx context.Context, postID string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE posts SET image_post=FALSE, image_path=NULL WHERE post_id=$1`, postID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (p *posts) CreateComment(ctx context.Context, m *model.Comment) (*model.Comment, error) {
	id := m.CommentID
	if id == "" {
		id = uuid.New().String()
	}
	var ts time.Time
	err := p.db.QueryRowContext(ctx, `
        INSERT INTO comments (comment_id, post_id, user_id, content, ts)
        VALUES ($1,$2,$3,$4,now())
        RETURNING ts
    `, id, m.PostID, m.UserID, m.Content).Scan(&ts)
	if err != nil {
		return nil, err
	}
	out := *m
	out.CommentID = id
	out.Timestamp = ts
	return &out, nil
}

func (p *posts) ListComments(ctx context.Context, postID string) ([]*model.Comment, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT comment_id, post_id, user_id, content, ts
        FROM comments WHERE post_id=$1 ORDER BY ts ASC
    `, postID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Comment
	for rows.Next() {
		var cm model.Comment
		if err := rows.Scan(&cm.CommentID, &cm.PostID, &cm.UserID, &cm.Content, &cm.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &cm)
	}
	return out, rows.Err()
}

func (p *posts) CreateLike(ctx context.Context, m *model.Like) (*model.Like, error) {
	id := m.LikeID
	if id == "" {
		id = uuid.New().String()
	}
	var ts time.Time
	err := p.db.QueryRowContext(ctx, `
        INSERT INTO likes (like_id, post_id, user_id, ts)
        VALUES ($1,$2,$3,now())
        RETURNING ts
    `, id, m.PostID, m.UserID).Scan(&ts)
	if err != nil {
		return nil, err
	}
	out := *m
	out.LikeID = id
	out.Timestamp = ts
	return &out, nil
}

func (p *posts) ListLikes(ctx context.Context, postID string) ([]*model.Like, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT like_id, post_id, user_id, ts
        FROM likes WHERE post_id=$1 ORDER BY ts ASC
    `, postID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Like
	for rows.Next() {
		var lk model.Like
		if err := rows.Scan(&lk.LikeID, &lk.PostID, &lk.UserID, &lk.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &lk)
	}
	return out, rows.Err()
}

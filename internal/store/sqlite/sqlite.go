package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

// nowMS is the database's current time as unix epoch milliseconds. Every
// scheduled-message comparison uses this expression so that the store's own
// clock, not the process clock, decides what counts as "the future".
const nowMS = "CAST((julianday('now') - 2440587.5)*86400000 AS INTEGER)"

// New constructs a sqlite-backed store from an open database handle.
func New(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users           { return &users{db: s.db} }
func (s *sqliteStore) Characters() store.Characters { return &characters{db: s.db} }
func (s *sqliteStore) Threads() store.Threads       { return &threads{db: s.db} }
func (s *sqliteStore) Messages() store.Messages     { return &messages{db: s.db} }
func (s *sqliteStore) Events() store.Events         { return &events{db: s.db} }
func (s *sqliteStore) Posts() store.Posts           { return &posts{db: s.db} }

// HealthPing checks database connectivity.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func msToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

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
	var ms int64
	err := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, username, creation_time)
        VALUES (?,?,`+nowMS+`)
        RETURNING creation_time
    `, id, m.Username).Scan(&ms)
	if err != nil {
		return nil, err
	}
	return &model.User{UserID: id, Username: m.Username, CreationTime: msToTime(ms)}, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	var ms int64
	err := u.db.QueryRowContext(ctx, `
        SELECT user_id, username, creation_time FROM users WHERE user_id=?
    `, userID).Scan(&out.UserID, &out.Username, &ms)
	if err != nil {
		return nil, notFound(err)
	}
	out.CreationTime = msToTime(ms)
	return &out, nil
}

func (u *users) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var out model.User
	var ms int64
	err := u.db.QueryRowContext(ctx, `
        SELECT user_id, username, creation_time FROM users WHERE username=?
    `, username).Scan(&out.UserID, &out.Username, &ms)
	if err != nil {
		return nil, notFound(err)
	}
	out.CreationTime = msToTime(ms)
	return &out, nil
}

// --- Characters ---

type characters struct{ db *sql.DB }

func (c *characters) Create(ctx context.Context, m *model.Character) (*model.Character, error) {
	id := m.CharacterID
	if id == "" {
		id = uuid.New().String()
	}
	var ms int64
	err := c.db.QueryRowContext(ctx, `
        INSERT INTO characters (character_id, name, path, personality, appearance, scenario, img_gen, image_model, creation_time)
        VALUES (?,?,?,?,?,?,?,?,`+nowMS+`)
        RETURNING creation_time
    `, id, m.Name, m.Path, m.Personality, m.Appearance, m.Scenario, m.ImgGen, m.ImageModel).Scan(&ms)
	if err != nil {
		return nil, err
	}
	out := *m
	out.CharacterID = id
	out.CreationTime = msToTime(ms)
	return &out, nil
}

const characterCols = `character_id, name, path, personality, appearance, scenario, img_gen, image_model, creation_time`

func scanCharacter(row interface{ Scan(...any) error }) (*model.Character, error) {
	var out model.Character
	var ms int64
	if err := row.Scan(&out.CharacterID, &out.Name, &out.Path, &out.Personality, &out.Appearance, &out.Scenario, &out.ImgGen, &out.ImageModel, &ms); err != nil {
		return nil, err
	}
	out.CreationTime = msToTime(ms)
	return &out, nil
}

func (c *characters) Get(ctx context.Context, characterID string) (*model.Character, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+characterCols+` FROM characters WHERE character_id=?`, characterID)
	out, err := scanCharacter(row)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

func (c *characters) GetByPath(ctx context.Context, path string) (*model.Character, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+characterCols+` FROM characters WHERE path=?`, path)
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
	res, err := c.db.ExecContext(ctx, `DELETE FROM characters WHERE character_id=?`, characterID)
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
	var ms int64
	err := t.db.QueryRowContext(ctx, `
        INSERT INTO threads (thread_id, user_id, character_id, creation_time)
        VALUES (?,?,?,`+nowMS+`)
        RETURNING creation_time
    `, id, m.UserID, m.CharacterID).Scan(&ms)
	if err != nil {
		return nil, err
	}
	return &model.Thread{ThreadID: id, UserID: m.UserID, CharacterID: m.CharacterID, CreationTime: msToTime(ms)}, nil
}

func (t *threads) Get(ctx context.Context, threadID string) (*model.Thread, error) {
	var out model.Thread
	var ms int64
	err := t.db.QueryRowContext(ctx, `
        SELECT thread_id, user_id, character_id, creation_time FROM threads WHERE thread_id=?
    `, threadID).Scan(&out.ThreadID, &out.UserID, &out.CharacterID, &ms)
	if err != nil {
		return nil, notFound(err)
	}
	out.CreationTime = msToTime(ms)
	return &out, nil
}

func (t *threads) GetByUserCharacter(ctx context.Context, userID, characterID string) (*model.Thread, error) {
	var out model.Thread
	var ms int64
	err := t.db.QueryRowContext(ctx, `
        SELECT thread_id, user_id, character_id, creation_time
        FROM threads WHERE user_id=? AND character_id=?
        ORDER BY creation_time ASC LIMIT 1
    `, userID, characterID).Scan(&out.ThreadID, &out.UserID, &out.CharacterID, &ms)
	if err != nil {
		return nil, notFound(err)
	}
	out.CreationTime = msToTime(ms)
	return &out, nil
}

func (t *threads) ListByUser(ctx context.Context, userID string) ([]*model.Thread, error) {
	rows, err := t.db.QueryContext(ctx, `
        SELECT thread_id, user_id, character_id, creation_time
        FROM threads WHERE user_id=? ORDER BY creation_time ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Thread
	for rows.Next() {
		var th model.Thread
		var ms int64
		if err := rows.Scan(&th.ThreadID, &th.UserID, &th.CharacterID, &ms); err != nil {
			return nil, err
		}
		th.CreationTime = msToTime(ms)
		out = append(out, &th)
	}
	return out, rows.Err()
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (m *messages) insert(ctx context.Context, msg *model.Message, tsExpr string, args ...any) (*model.Message, error) {
	id := msg.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	var ms int64
	all := append([]any{id, msg.ThreadID, msg.Role, msg.Content}, args...)
	err := m.db.QueryRowContext(ctx, `
        INSERT INTO messages (message_id, thread_id, role, content, ts)
        VALUES (?,?,?,?,`+tsExpr+`)
        RETURNING ts
    `, all...).Scan(&ms)
	if err != nil {
		return nil, err
	}
	out := *msg
	out.MessageID = id
	out.Timestamp = msToTime(ms)
	return &out, nil
}

func (m *messages) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	return m.insert(ctx, msg, nowMS)
}

func (m *messages) CreateScheduled(ctx context.Context, msg *model.Message, delay time.Duration) (*model.Message, error) {
	return m.insert(ctx, msg, nowMS+" + ?", delay.Milliseconds())
}

func (m *messages) Get(ctx context.Context, messageID string) (*model.Message, error) {
	var out model.Message
	var ms int64
	err := m.db.QueryRowContext(ctx, `
        SELECT message_id, thread_id, role, content, ts FROM messages WHERE message_id=?
    `, messageID).Scan(&out.MessageID, &out.ThreadID, &out.Role, &out.Content, &ms)
	if err != nil {
		return nil, notFound(err)
	}
	out.Timestamp = msToTime(ms)
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
		var ms int64
		if err := rows.Scan(&msg.MessageID, &msg.ThreadID, &msg.Role, &msg.Content, &ms); err != nil {
			return nil, err
		}
		msg.Timestamp = msToTime(ms)
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func (m *messages) ListByThread(ctx context.Context, threadID string) ([]*model.Message, error) {
	return m.list(ctx, `
        SELECT message_id, thread_id, role, content, ts
        FROM messages WHERE thread_id=? ORDER BY ts ASC
    `, threadID)
}

func (m *messages) ListByCharacter(ctx context.Context, characterID string) ([]*model.Message, error) {
	return m.list(ctx, `
        SELECT m.message_id, m.thread_id, m.role, m.content, m.ts
        FROM messages m JOIN threads t ON t.thread_id = m.thread_id
        WHERE t.character_id=? ORDER BY m.ts ASC
    `, characterID)
}

func (m *messages) ListScheduled(ctx context.Context, threadID string) ([]*model.Message, error) {
	return m.list(ctx, `
        SELECT message_id, thread_id, role, content, ts
        FROM messages WHERE thread_id=? AND ts > `+nowMS+` ORDER BY ts ASC
    `, threadID)
}

func (m *messages) DeleteScheduled(ctx context.Context, threadID string) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
        DELETE FROM messages WHERE thread_id=? AND ts > `+nowMS, threadID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *messages) Promote(ctx context.Context, messageID string) (*model.Message, error) {
	res, err := m.db.ExecContext(ctx, `
        UPDATE messages SET ts = `+nowMS+` WHERE message_id=?`, messageID)
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

	var ms int64
	err = tx.QueryRowContext(ctx, `
        SELECT ts FROM messages WHERE thread_id=? AND message_id=?`, threadID, messageID).Scan(&ms)
	if err != nil {
		return 0, notFound(err)
	}
	res, err := tx.ExecContext(ctx, `
        DELETE FROM messages WHERE thread_id=? AND (ts > ? OR message_id=?)`, threadID, ms, messageID)
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
	var ms int64
	err := e.db.QueryRowContext(ctx, `
        INSERT INTO events (event_id, character_id, kind, content, ts)
        VALUES (?,?,?,?,`+nowMS+`)
        RETURNING ts
    `, id, m.CharacterID, m.Kind, m.Content).Scan(&ms)
	if err != nil {
		return nil, err
	}
	out := *m
	out.EventID = id
	out.Timestamp = msToTime(ms)
	return &out, nil
}

func (e *events) ListByCharacter(ctx context.Context, characterID string) ([]*model.Event, error) {
	rows, err := e.db.QueryContext(ctx, `
        SELECT event_id, character_id, kind, content, ts
        FROM events WHERE character_id=? ORDER BY ts ASC
    `, characterID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Event
	for rows.Next() {
		var ev model.Event
		var ms int64
		if err := rows.Scan(&ev.EventID, &ev.CharacterID, &ev.Kind, &ev.Content, &ms); err != nil {
			return nil, err
		}
		ev.Timestamp = msToTime(ms)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (e *events) Delete(ctx context.Context, eventID string) error {
	res, err := e.db.ExecContext(ctx, `DELETE FROM events WHERE event_id=?`, eventID)
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
	var ms int64
	err := p.db.QueryRowContext(ctx, `
        INSERT INTO posts (post_id, character_id, description, image_post, prompt, caption, ts)
        VALUES (?,?,?,?,?,?,`+nowMS+`)
        RETURNING ts
    `, id, m.CharacterID, m.Description, m.ImagePost, m.Prompt, m.Caption).Scan(&ms)
	if err != nil {
		return nil, err
	}
	out := *m
	out.PostID = id
	out.Timestamp = msToTime(ms)
	return &out, nil
}

func (p *posts) Get(ctx context.Context, postID string) (*model.Post, error) {
	var out model.Post
	var ms int64
	var imagePath sql.NullString
	err := p.db.QueryRowContext(ctx, `
        SELECT post_id, character_id, description, image_post, prompt, caption, image_path, ts
        FROM posts WHERE post_id=?
    `, postID).Scan(&out.PostID, &out.CharacterID, &out.Description, &out.ImagePost, &out.Prompt, &out.Caption, &imagePath, &ms)
	if err != nil {
		return nil, notFound(err)
	}
	if imagePath.Valid {
		out.ImagePath = &imagePath.String
	}
	out.Timestamp = msToTime(ms)
	return &out, nil
}

func (p *posts) ListByCharacter(ctx context.Context, characterID string) ([]*model.Post, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT post_id, character_id, description, image_post, prompt, caption, image_path, ts
        FROM posts WHERE character_id=? ORDER BY ts ASC
    `, characterID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Post
	for rows.Next() {
		var po model.Post
		var ms int64
		var imagePath sql.NullString
		if err := rows.Scan(&po.PostID, &po.CharacterID, &po.Description, &po.ImagePost, &po.Prompt, &po.Caption, &imagePath, &ms); err != nil {
			return nil, err
		}
		if imagePath.Valid {
			po.ImagePath = &imagePath.String
		}
		po.Timestamp = msToTime(ms)
		out = append(out, &po)
	}
	return out, rows.Err()
}

func (p *posts) SetImagePath(ctx context.Context, postID, imagePath string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE posts SET image_path=? WHERE post_id=?`, imagePath, postID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (p *posts) ClearImage(ctx context.Context, postID string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE posts SET image_post=0, image_path=NULL WHERE post_id=?`, postID)
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
	var ms int64
	err := p.db.QueryRowContext(ctx, `
        INSERT INTO comments (comment_id, post_id, user_id, content, ts)
        VALUES (?,?,?,?,`+nowMS+`)
        RETURNING ts
    `, id, m.PostID, m.UserID, m.Content).Scan(&ms)
	if err != nil {
		return nil, err
	}
	out := *m
	out.CommentID = id
	out.Timestamp = msToTime(ms)
	return &out, nil
}

func (p *posts) ListComments(ctx context.Context, postID string) ([]*model.Comment, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT comment_id, post_id, user_id, content, ts
        FROM comments WHERE post_id=? ORDER BY ts ASC
    `, postID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Comment
	for rows.Next() {
		var cm model.Comment
		var ms int64
		if err := rows.Scan(&cm.CommentID, &cm.PostID, &cm.UserID, &cm.Content, &ms); err != nil {
			return nil, err
		}
		cm.Timestamp = msToTime(ms)
		out = append(out, &cm)
	}
	return out, rows.Err()
}

func (p *posts) CreateLike(ctx context.Context, m *model.Like) (*model.Like, error) {
	id := m.LikeID
	if id == "" {
		id = uuid.New().String()
	}
	var ms int64
	err := p.db.QueryRowContext(ctx, `
        INSERT INTO likes (like_id, post_id, user_id, ts)
        VALUES (?,?,?,`+nowMS+`)
        RETURNING ts
    `, id, m.PostID, m.UserID).Scan(&ms)
	if err != nil {
		return nil, err
	}
	out := *m
	out.LikeID = id
	out.Timestamp = msToTime(ms)
	return &out, nil
}

func (p *posts) ListLikes(ctx context.Context, postID string) ([]*model.Like, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT like_id, post_id, user_id, ts
        FROM likes WHERE post_id=? ORDER BY ts ASC
    `, postID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Like
	for rows.Next() {
		var lk model.Like
		var ms int64
		if err := rows.Scan(&lk.LikeID, &lk.PostID, &lk.UserID, &ms); err != nil {
			return nil, err
		}
		lk.Timestamp = msToTime(ms)
		out = append(out, &lk)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver

	"github.com/hubenschmidt/live-interview/internal/trace"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQL persists interview data to PostgreSQL.
type SQL struct {
	db *sql.DB
}

// Open connects to the PostgreSQL database at connStr and applies pending migrations.
func Open(ctx context.Context, connStr string) (*SQL, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store ping: %w", err)
	}
	if err = migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store migrate: %w", err)
	}
	return &SQL{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.ExecContext(ctx, string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQL) Close() error {
	return s.db.Close()
}

const sessionColumns = `id, role, difficulty, domain, job_description, status, created_at, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var startedAt, endedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.Role, &sess.Difficulty, &sess.Domain, &sess.JobDescription,
		&sess.Status, &sess.CreatedAt, &startedAt, &endedAt)
	if err != nil {
		return Session{}, err
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		sess.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		sess.EndedAt = &t
	}
	return sess, nil
}

func (s *SQL) CreateSession(ctx context.Context, sess Session) error {
	if sess.Status == "" {
		sess.Status = StatusCreated
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, role, difficulty, domain, job_description, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.Role, sess.Difficulty, sess.Domain, sess.JobDescription, string(sess.Status), sess.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return requireAffected(res, fmt.Errorf("session %s: %w", sess.ID, ErrAlreadyExists))
}

func (s *SQL) GetSession(ctx context.Context, id string) (Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("select session: %w", err)
	}
	return sess, nil
}

func (s *SQL) SetStatus(ctx context.Context, id string, status Status) error {
	_, err := s.transition(ctx, id, status, nil)
	return err
}

func (s *SQL) StartSession(ctx context.Context, id string, at time.Time) (Session, error) {
	return s.transition(ctx, id, StatusLive, &stamp{column: "started_at", at: at})
}

func (s *SQL) FinishSession(ctx context.Context, id string, at time.Time) (Session, error) {
	return s.transition(ctx, id, StatusFinished, &stamp{column: "ended_at", at: at})
}

// stamp fills a timestamp column during a transition unless it is already set.
type stamp struct {
	column string
	at     time.Time
}

// transition applies a monotonic status change inside a row-locking
// transaction. st may be nil.
func (s *SQL) transition(ctx context.Context, id string, to Status, st *stamp) (Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current, err := scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("lock session: %w", err)
	}
	if !CanTransition(current.Status, to) {
		return Session{}, fmt.Errorf("session %s %s -> %s: %w", id, current.Status, to, ErrInvalidTransition)
	}

	query, args := transitionQuery(id, to, st)
	updated, err := scanSession(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func transitionQuery(id string, to Status, st *stamp) (string, []any) {
	if st == nil {
		return `UPDATE sessions SET status = $1 WHERE id = $2 RETURNING ` + sessionColumns, []any{string(to), id}
	}
	return `UPDATE sessions SET status = $1, ` + st.column + ` = COALESCE(` + st.column + `, $2) WHERE id = $3 RETURNING ` + sessionColumns,
		[]any{string(to), st.at.UTC(), id}
}

func (s *SQL) SaveQuestions(ctx context.Context, sessionID string, items []QuestionItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists, count int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = $1`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE session_id = $1`, sessionID).Scan(&count); err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("questions for %s: %w", sessionID, ErrAlreadyExists)
	}

	for _, it := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (session_id, order_idx, question, ideal_answer) VALUES ($1, $2, $3, $4)`,
			sessionID, it.OrderIdx, it.Question, it.IdealAnswer,
		)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", it.OrderIdx, err)
		}
	}
	return tx.Commit()
}

func (s *SQL) Questions(ctx context.Context, sessionID string) ([]QuestionItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, order_idx, question, ideal_answer FROM questions WHERE session_id = $1 ORDER BY order_idx ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	defer rows.Close()

	var items []QuestionItem
	for rows.Next() {
		var it QuestionItem
		if err = rows.Scan(&it.SessionID, &it.OrderIdx, &it.Question, &it.IdealAnswer); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQL) AppendMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, who, text, ts) VALUES ($1, $2, $3, $4)`,
		m.SessionID, string(m.Who), m.Text, m.TS.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQL) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, who, text, ts FROM messages WHERE session_id = $1 ORDER BY ts ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err = rows.Scan(&m.SessionID, &m.Who, &m.Text, &m.TS); err != nil {
			return nil, err
		}
		m.TS = m.TS.UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQL) SaveEvaluation(ctx context.Context, ev Evaluation) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (session_id, technical, communication, confidence, strengths, summary, rubric, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (session_id) DO NOTHING`,
		ev.SessionID, ev.Technical, ev.Communication, ev.Confidence, ev.Strengths, ev.Summary, ev.Rubric, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return requireAffected(res, fmt.Errorf("evaluation for %s: %w", ev.SessionID, ErrAlreadyExists))
}

func (s *SQL) Evaluation(ctx context.Context, sessionID string) (Evaluation, error) {
	var ev Evaluation
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, technical, communication, confidence, strengths, summary, rubric, created_at
		 FROM evaluations WHERE session_id = $1`, sessionID,
	).Scan(&ev.SessionID, &ev.Technical, &ev.Communication, &ev.Confidence, &ev.Strengths, &ev.Summary, &ev.Rubric, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Evaluation{}, fmt.Errorf("evaluation for %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return Evaluation{}, fmt.Errorf("select evaluation: %w", err)
	}
	return ev, nil
}

// CreateSpan inserts a span.
func (s *SQL) CreateSpan(sp trace.Span) error {
	_, err := s.db.Exec(
		`INSERT INTO spans (id, session_id, name, started_at, duration_ms, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sp.ID, sp.SessionID, sp.Name, sp.StartedAt.UTC(), sp.DurationMs, sp.Status, sp.Error,
	)
	return err
}

func (s *SQL) Spans(ctx context.Context, sessionID string) ([]trace.Span, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, name, started_at, duration_ms, status, error_msg FROM spans WHERE session_id = $1 ORDER BY started_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select spans: %w", err)
	}
	defer rows.Close()

	var spans []trace.Span
	for rows.Next() {
		var sp trace.Span
		if err = rows.Scan(&sp.ID, &sp.SessionID, &sp.Name, &sp.StartedAt, &sp.DurationMs, &sp.Status, &sp.Error); err != nil {
			return nil, err
		}
		spans = append(spans, sp)
	}
	return spans, rows.Err()
}

func requireAffected(res sql.Result, onZero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return onZero
	}
	return nil
}

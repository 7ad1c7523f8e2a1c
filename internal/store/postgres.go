package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
)

// pqUniqueViolation is the SQLSTATE for a duplicate key.
const pqUniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS assessment_sessions (
	id             uuid        PRIMARY KEY,
	token          text        NOT NULL,
	started        boolean     NOT NULL DEFAULT false,
	question_index integer     NOT NULL DEFAULT 0,
	answers        jsonb       NOT NULL DEFAULT '{}'::jsonb,
	label          text,
	feature_row    jsonb,
	created_at     timestamptz NOT NULL,
	updated_at     timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS assessment_sessions_updated_at_idx
	ON assessment_sessions (updated_at);
`

const sessionColumns = `id, token, started, question_index, answers, label, feature_row, created_at, updated_at`

// Postgres stores sessions in the assessment_sessions table. The pool must
// already be open and verified (e.g. via PingContext) before calling
// NewPostgres.
type Postgres struct {
	pool *sql.DB
}

// NewPostgres wraps a live connection pool.
func NewPostgres(pool *sql.DB) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the sessions table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// txFunc receives a transaction. Returning a non-nil error causes withTx to
// roll back.
type txFunc func(ctx context.Context, tx *sql.Tx) error

// withTx begins a transaction, passes it to fn, and commits on success or
// rolls back on any error (including panics).
//
// Read committed is enough here: Update locks the row with SELECT ... FOR
// UPDATE, so concurrent updates of one session queue behind each other
// instead of failing with serialization errors.
func (p *Postgres) withTx(ctx context.Context, fn txFunc) error {
	tx, err := p.pool.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// ─── ROW MAPPING ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(sc rowScanner) (questionnaire.Session, error) {
	var (
		s       questionnaire.Session
		answers []byte
		label   sql.NullString
		row     pqtype.NullRawMessage
	)
	err := sc.Scan(&s.ID, &s.Token, &s.Started, &s.Index, &answers, &label, &row, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return questionnaire.Session{}, ErrNotFound
	}
	if err != nil {
		return questionnaire.Session{}, fmt.Errorf("store: scan session: %w", err)
	}
	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return questionnaire.Session{}, fmt.Errorf("store: decode answers for %s: %w", s.ID, err)
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	s.Label = label.String
	if row.Valid {
		s.Row = row.RawMessage
	}
	return s, nil
}

// sessionArgs returns the column values in sessionColumns order.
func sessionArgs(s questionnaire.Session) ([]any, error) {
	answers := s.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	a, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("store: encode answers: %w", err)
	}
	return []any{
		s.ID,
		s.Token,
		s.Started,
		s.Index,
		a,
		sql.NullString{String: s.Label, Valid: s.Label != ""},
		pqtype.NullRawMessage{RawMessage: s.Row, Valid: len(s.Row) > 0},
		s.CreatedAt,
		s.UpdatedAt,
	}, nil
}

// ─── METHODS ─────────────────────────────────────────────────────────────────

func (p *Postgres) Create(ctx context.Context, s questionnaire.Session) error {
	args, err := sessionArgs(s)
	if err != nil {
		return err
	}
	_, err = p.pool.ExecContext(ctx,
		`INSERT INTO assessment_sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		args...,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (questionnaire.Session, error) {
	return scanSession(p.pool.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1`, id))
}

// Update re-reads the session under a row lock so the read-modify-write is
// atomic with respect to other Updates.
func (p *Postgres) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (questionnaire.Session, error) {
	var out questionnaire.Session

	err := p.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		s, err := scanSession(tx.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(&s); err != nil {
			return err
		}
		args, err := sessionArgs(s)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE assessment_sessions
			 SET token = $2, started = $3, question_index = $4, answers = $5,
			     label = $6, feature_row = $7, created_at = $8, updated_at = $9
			 WHERE id = $1`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("store: update session: %w", err)
		}
		out = s
		return nil
	})
	if err != nil {
		return questionnaire.Session{}, err
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := p.pool.ExecContext(ctx, `DELETE FROM assessment_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := p.pool.ExecContext(ctx, `DELETE FROM assessment_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	return int(n), nil
}

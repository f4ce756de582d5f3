package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/gumball/internal/repos/sessions"
)

var _ sessions.Sessions = (*sessionsRepo)(nil)

type sessionsRepo struct{}

func New() *sessionsRepo {
	return &sessionsRepo{}
}

func (r *sessionsRepo) Get(ctx context.Context, tx *sql.Tx, account string) (sessions.Session, error) {
	var (
		s              sessions.Session
		phase          int16
		commit         int64
		lastCollection sql.NullString
		lastTokenID    sql.NullInt64
	)

	err := tx.QueryRowContext(ctx, `
		SELECT phase, commit_block, last_collection, last_token_id
		FROM sessions
		WHERE account = $1
	`, account).Scan(&phase, &commit, &lastCollection, &lastTokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, nil
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("get session: %w", err)
	}

	s.Phase = uint8(phase)
	s.CommitBlock = uint64(commit)

	if lastCollection.Valid {
		s.LastCollection = lastCollection.String
		s.LastTokenID = uint64(lastTokenID.Int64)
	}

	return s, nil
}

func (r *sessionsRepo) Put(ctx context.Context, tx *sql.Tx, account string, s sessions.Session) error {
	var (
		lastCollection sql.NullString
		lastTokenID    sql.NullInt64
	)

	if s.LastCollection != "" {
		lastCollection = sql.NullString{String: s.LastCollection, Valid: true}
		lastTokenID = sql.NullInt64{Int64: int64(s.LastTokenID), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (account, phase, commit_block, last_collection, last_token_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account)
		DO UPDATE SET
			phase = EXCLUDED.phase,
			commit_block = EXCLUDED.commit_block,
			last_collection = EXCLUDED.last_collection,
			last_token_id = EXCLUDED.last_token_id
	`, account, int16(s.Phase), int64(s.CommitBlock), lastCollection, lastTokenID)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	return nil
}

func (r *sessionsRepo) ListByPhaseBefore(ctx context.Context, tx *sql.Tx, phase uint8, commit uint64) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT account
		FROM sessions
		WHERE phase = $1 AND commit_block < $2
		ORDER BY account
	`, int16(phase), int64(commit))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []string

	for rows.Next() {
		var account string

		err = rows.Scan(&account)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		out = append(out, account)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return out, nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/foxshrine/shrine-api/internal/model"
)

// SessionRepo persists token-pair sessions (hashes only, never raw tokens).
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row for a freshly issued token pair.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, token_hash, refresh_hash, ip, user_agent, expires_at) VALUES (?,?,?,?,?,?,?)",
		s.ID, s.UserID, s.TokenHash, s.RefreshHash, s.IP, s.UserAgent, s.ExpiresAt)
	return err
}

// Rotate atomically replaces a session's token triple. The UPDATE matches
// the old refresh hash and requires the row active and unexpired, so two
// concurrent refreshes cannot both succeed: the loser matches zero rows and
// gets sql.ErrNoRows. The refresh hash changes on every rotation, making it
// a natural compare-and-swap token.
func (r *SessionRepo) Rotate(ctx context.Context, oldRefreshHash, tokenHash, refreshHash string, expiresAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET token_hash=?, refresh_hash=?, expires_at=?
		 WHERE refresh_hash=? AND is_active=1 AND expires_at > ?`,
		tokenHash, refreshHash, expiresAt, oldRefreshHash, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate marks the session holding the given access-token hash
// inactive. Matching no rows is not an error: logout is idempotent.
func (r *SessionRepo) Deactivate(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE token_hash=? AND is_active=1",
		tokenHash)
	return err
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tablestakes/tracker/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SessionRepository provides access to stored session records. Sessions are
// append-only: inserted once, deleted by ID or bulk-cleared, never updated.
// ReplacePlayers is the one exception and exists solely for the player-merge
// maintenance operation.
type SessionRepository interface {
	// List returns all sessions, newest date first (dateless sessions last).
	List(ctx context.Context, db DBTX) ([]domain.SessionRecord, error)

	// FindBySessionID returns a session by its natural ID, or nil.
	FindBySessionID(ctx context.Context, db DBTX, sessionID string) (*domain.SessionRecord, error)

	// FindDuplicate looks for a session with the same date, winner and total
	// pot. Used for uploads lacking a natural ID.
	FindDuplicate(ctx context.Context, db DBTX, date *string, winnerName string, totalPot int64) (*domain.SessionRecord, error)

	// Insert stores a new session. Inserting an existing session_id returns
	// a CONFLICT error.
	Insert(ctx context.Context, db DBTX, session *domain.SessionRecord) error

	// Delete removes a session by session_id, reporting whether a row existed.
	Delete(ctx context.Context, db DBTX, sessionID string) (bool, error)

	// Clear removes every stored session.
	Clear(ctx context.Context, db DBTX) error

	// ReplacePlayers rewrites a session's player list and winner-derived
	// fields in place.
	ReplacePlayers(ctx context.Context, db DBTX, session *domain.SessionRecord) error
}

// SettlementStatusRepository stores advisory settlement statuses keyed by the
// (debtor, creditor) pair.
type SettlementStatusRepository interface {
	// List returns all stored status rows.
	List(ctx context.Context, db DBTX) ([]domain.SettlementStatusRecord, error)

	// Upsert creates or updates the status for a pair and returns the row.
	Upsert(ctx context.Context, db DBTX, rec domain.SettlementStatusRecord) (*domain.SettlementStatusRecord, error)

	// Clear removes every stored status. Used with session bulk-clear.
	Clear(ctx context.Context, db DBTX) error
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablestakes/tracker/internal/domain"
	"github.com/tablestakes/tracker/internal/infra"
)

type sessionRepo struct{}

// NewSessionRepository returns a pgx-backed SessionRepository.
func NewSessionRepository() SessionRepository {
	return &sessionRepo{}
}

const sessionColumns = `session_id, date, players, winner_name, winner_profit, total_pot, player_count, added_at`

func (r *sessionRepo) List(ctx context.Context, db DBTX) ([]domain.SessionRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY date DESC NULLS LAST, added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

func (r *sessionRepo) FindBySessionID(ctx context.Context, db DBTX, sessionID string) (*domain.SessionRecord, error) {
	row := db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions WHERE session_id = $1`, sessionID)
	return scanSession(row)
}

func (r *sessionRepo) FindDuplicate(ctx context.Context, db DBTX, date *string, winnerName string, totalPot int64) (*domain.SessionRecord, error) {
	row := db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE date IS NOT DISTINCT FROM $1 AND winner_name = $2 AND total_pot = $3
		LIMIT 1`,
		dateValue(date), winnerName, infra.Int64ToNumeric(totalPot))
	return scanSession(row)
}

func (r *sessionRepo) Insert(ctx context.Context, db DBTX, session *domain.SessionRecord) error {
	players, err := json.Marshal(session.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}

	tag, err := db.Exec(ctx, `
		INSERT INTO sessions
		  (session_id, date, players, winner_name, winner_profit, total_pot, player_count, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING`,
		session.SessionID,
		dateValue(session.Date),
		players,
		session.WinnerName,
		infra.Int64ToNumeric(session.WinnerProfit),
		infra.Int64ToNumeric(session.TotalPot),
		session.PlayerCount,
		session.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict(fmt.Sprintf("session %s already exists", session.SessionID))
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, db DBTX, sessionID string) (bool, error) {
	tag, err := db.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *sessionRepo) Clear(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

func (r *sessionRepo) ReplacePlayers(ctx context.Context, db DBTX, session *domain.SessionRecord) error {
	players, err := json.Marshal(session.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}

	tag, err := db.Exec(ctx, `
		UPDATE sessions
		SET players = $2, winner_name = $3, winner_profit = $4, player_count = $5
		WHERE session_id = $1`,
		session.SessionID,
		players,
		session.WinnerName,
		infra.Int64ToNumeric(session.WinnerProfit),
		session.PlayerCount,
	)
	if err != nil {
		return fmt.Errorf("update session players: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("session", session.SessionID)
	}
	return nil
}

// dateValue maps the optional day-precision ISO date to a DATE parameter.
func dateValue(date *string) interface{} {
	if date == nil {
		return nil
	}
	if t, err := time.Parse("2006-01-02", *date); err == nil {
		return t
	}
	return nil
}

func scanSession(row pgx.Row) (*domain.SessionRecord, error) {
	session, err := scanSessionFrom(row.Scan)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

func collectSessions(rows pgx.Rows) ([]domain.SessionRecord, error) {
	var sessions []domain.SessionRecord
	for rows.Next() {
		session, err := scanSessionFrom(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func scanSessionFrom(scan func(dest ...interface{}) error) (*domain.SessionRecord, error) {
	var session domain.SessionRecord
	var date pgtype.Date
	var players []byte
	var profitNum, potNum pgtype.Numeric

	err := scan(
		&session.SessionID, &date, &players,
		&session.WinnerName, &profitNum, &potNum,
		&session.PlayerCount, &session.AddedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if date.Valid {
		iso := date.Time.Format("2006-01-02")
		session.Date = &iso
	}
	if err := json.Unmarshal(players, &session.Players); err != nil {
		return nil, fmt.Errorf("unmarshal players: %w", err)
	}
	if session.WinnerProfit, err = infra.NumericToInt64(profitNum); err != nil {
		return nil, fmt.Errorf("convert winner_profit: %w", err)
	}
	if session.TotalPot, err = infra.NumericToInt64(potNum); err != nil {
		return nil, fmt.Errorf("convert total_pot: %w", err)
	}

	return &session, nil
}
